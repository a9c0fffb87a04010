package courses

import (
	"go.uber.org/fx"
)

// Module provides the courses domain: the course, content, member and
// submission group surfaces.
var Module = fx.Module("courses",
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Provide(NewCourseController),
	fx.Provide(NewContentController),
	fx.Provide(NewMemberController),
	fx.Provide(NewGroupController),
	fx.Invoke(RegisterRoutes),
)

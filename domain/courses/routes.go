package courses

import (
	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/pkg/auth"
)

// RegisterRoutes mounts the course CRUD surfaces and the role/group
// membership endpoints.
func RegisterRoutes(
	e *echo.Echo,
	h *Handler,
	coursesCtl *CourseController,
	contents *ContentController,
	members *MemberController,
	groups *GroupController,
	authMiddleware *auth.Middleware,
) {
	api := e.Group("")
	api.Use(authMiddleware.RequireAuth())

	coursesCtl.Mount(api)
	contents.Mount(api)
	members.Mount(api)
	groups.Mount(api)

	api.POST("/course-members/:id/role", h.AssignRole)
	api.POST("/submission-groups/:id/members", h.AddGroupMember)
	api.DELETE("/submission-groups/:id/members/:memberId", h.RemoveGroupMember)
}

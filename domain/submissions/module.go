package submissions

import (
	"go.uber.org/fx"
)

// Module provides the submissions domain: artifacts, results, grades and
// reviews.
var Module = fx.Module("submissions",
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Provide(NewArtifactController),
	fx.Provide(NewResultController),
	fx.Provide(NewGradeController),
	fx.Provide(NewReviewController),
	fx.Invoke(RegisterRoutes),
)

package submissions

import (
	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/pkg/auth"
)

// RegisterRoutes mounts the artifact, result, grade and review surfaces plus
// the presigned upload/download endpoints and the group-scoped reads.
func RegisterRoutes(
	e *echo.Echo,
	h *Handler,
	artifacts *ArtifactController,
	results *ResultController,
	grades *GradeController,
	reviews *ReviewController,
	authMiddleware *auth.Middleware,
) {
	api := e.Group("")
	api.Use(authMiddleware.RequireAuth())

	artifacts.Mount(api)
	results.Mount(api)
	grades.Mount(api)
	reviews.Mount(api)

	api.POST("/submission-groups/:id/artifacts", h.Upload)
	api.GET("/submission-groups/:id/artifacts", h.GroupArtifacts)
	api.POST("/artifacts/:id/submit", h.Submit)
	api.GET("/artifacts/:id/download", h.Download)
	api.GET("/artifacts/:id/results", h.ArtifactResults)
	api.GET("/artifacts/:id/grades", h.ArtifactGrades)
	api.GET("/artifacts/:id/reviews", h.ArtifactReviews)
}

package tasks

import (
	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/pkg/auth"
)

// RegisterRoutes registers the task routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/tasks")
	g.Use(authMiddleware.RequireAuth())

	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/status", h.Status)
	g.GET("/:id/result", h.Result)
	g.DELETE("/:id/cancel", h.Cancel)

	admin := g.Group("")
	admin.Use(authMiddleware.RequireAdmin())
	admin.POST("/submit", h.Submit)
	admin.GET("/workflows", h.Workflows)
	admin.GET("/stats", h.Stats)
}

package messages

import (
	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/pkg/auth"
)

// RegisterRoutes mounts the message surface.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/messages")
	g.Use(authMiddleware.RequireAuth())

	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)

	g.POST("/:id/reads", h.MarkRead)
	g.DELETE("/:id/reads", h.UnmarkRead)
	g.GET("/:id/audit", h.Audit)
}

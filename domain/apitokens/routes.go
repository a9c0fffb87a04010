package apitokens

import (
	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/pkg/auth"
)

// RegisterRoutes registers the API token routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/apitokens")
	g.Use(authMiddleware.RequireAuth())

	g.POST("", h.Create)
	g.GET("", h.List)
	g.DELETE("/:id", h.Revoke)
}

package sessions

import (
	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/pkg/auth"
)

// RegisterRoutes registers the auth and session routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	a := e.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.GET("/providers", h.Providers)
	a.POST("/logout", h.Logout, authMiddleware.RequireAuth())

	s := e.Group("/sessions")
	s.Use(authMiddleware.RequireAuth())
	s.GET("", h.List)
	s.DELETE("", h.RevokeAll)
	s.DELETE("/:sid", h.Revoke)
}

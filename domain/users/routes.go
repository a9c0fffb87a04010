package users

import (
	"github.com/labstack/echo/v4"

	"github.com/codecampus/campus-core/pkg/auth"
)

// RegisterRoutes registers the password surface and the users CRUD routes.
func RegisterRoutes(e *echo.Echo, h *Handler, crud *Controller, authMiddleware *auth.Middleware) {
	g := e.Group("/password")
	g.Use(authMiddleware.RequireAuth())

	g.POST("/set", h.SetPassword)
	g.POST("/change", h.ChangePassword)
	g.POST("/admin/set", h.AdminSetPassword)
	g.POST("/admin/reset", h.AdminResetPassword)
	g.GET("/status", h.PasswordStatus)
	g.GET("/status/:username", h.PasswordStatus)

	api := e.Group("")
	api.Use(authMiddleware.RequireAuth())
	crud.Mount(api)
}

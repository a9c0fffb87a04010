package organizations

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/codecampus/campus-core/pkg/auth"
)

// Module provides the organization hierarchy domain.
var Module = fx.Module("organizations",
	fx.Provide(NewOrgController),
	fx.Provide(NewFamilyController),
	fx.Invoke(RegisterRoutes),
)

// RegisterRoutes mounts the organization and course family CRUD routes.
func RegisterRoutes(e *echo.Echo, orgs *OrgController, families *FamilyController, authMiddleware *auth.Middleware) {
	api := e.Group("")
	api.Use(authMiddleware.RequireAuth())
	orgs.Mount(api)
	families.Mount(api)
}

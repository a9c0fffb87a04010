package health

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// Module provides the health endpoints.
var Module = fx.Module("health",
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)

// RegisterRoutes mounts the probes. They are unauthenticated.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/health", h.Health)
	e.GET("/healthz", h.Healthz)
	e.GET("/ready", h.Ready)
	e.GET("/version", h.Version)
}

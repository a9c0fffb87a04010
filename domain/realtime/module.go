package realtime

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/codecampus/campus-core/domain/messages"
	"github.com/codecampus/campus-core/internal/crud"
)

// Module provides the realtime gateway and the pub/sub hub. The hub doubles
// as the broadcast sink for the message service and the CRUD dispatcher.
var Module = fx.Module("realtime",
	fx.Provide(NewHub),
	fx.Provide(NewGateway),
	fx.Provide(func(h *Hub) messages.Broadcaster { return h }),
	fx.Provide(func(h *Hub) crud.EventPublisher { return h }),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(runHub),
)

// RegisterRoutes mounts the WebSocket endpoint. Authentication happens
// inside the handler, after the upgrade.
func RegisterRoutes(e *echo.Echo, g *Gateway) {
	e.GET("/ws", g.Handle)
}

func runHub(lc fx.Lifecycle, h *Hub) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			h.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			h.Stop()
			return nil
		},
	})
}

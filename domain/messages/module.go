package messages

import (
	"log/slog"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/codecampus/campus-core/domain/courses"
)

type serviceParams struct {
	fx.In

	DB      bun.IDB
	Courses *courses.Service
	Log     *slog.Logger
	// Fan-out is optional so the domain works without the realtime gateway.
	Bus Broadcaster `optional:"true"`
}

// Module provides the messages domain.
var Module = fx.Module("messages",
	fx.Provide(func(p serviceParams) *Service {
		return NewService(p.DB, p.Courses, p.Bus, p.Log)
	}),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)

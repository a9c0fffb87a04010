package sessions

import (
	"go.uber.org/fx"

	"github.com/codecampus/campus-core/pkg/auth"
)

// Module provides the sessions domain.
var Module = fx.Module("sessions",
	fx.Provide(NewRepository),
	fx.Provide(func(r *Repository) Store { return r }),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Provide(func(s *Service) auth.SessionVerifier { return s }),
	fx.Invoke(RegisterRoutes),
)

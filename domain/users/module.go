package users

import (
	"go.uber.org/fx"

	"github.com/codecampus/campus-core/pkg/auth"
)

// Module provides the users domain.
var Module = fx.Module("users",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Provide(NewCRUDController),
	fx.Provide(func(s *Service) auth.IdentityLinker { return s }),
	fx.Provide(func(s *Service) auth.PasswordVerifier { return s }),
	fx.Invoke(RegisterRoutes),
)

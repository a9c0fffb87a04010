package apitokens

import (
	"context"

	"go.uber.org/fx"

	"github.com/codecampus/campus-core/internal/config"
	"github.com/codecampus/campus-core/pkg/auth"
)

// Module provides the API tokens domain.
var Module = fx.Module("apitokens",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Provide(func(s *Service) auth.TokenVerifier { return s }),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(seedWorkers),
)

// seedWorkers materializes configured worker service accounts on startup.
func seedWorkers(lc fx.Lifecycle, s *Service, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.SeedWorkerServices(ctx, cfg)
		},
	})
}

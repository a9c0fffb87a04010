package permissions

import (
	"log/slog"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/codecampus/campus-core/pkg/cache"
)

// Module provides the permission engine with the platform rule set.
var Module = fx.Module("permissions",
	fx.Provide(func(db bun.IDB, c *cache.Cache, log *slog.Logger) *Engine {
		return NewEngine(db, c, log, DefaultRules())
	}),
)

package cache

import "go.uber.org/fx"

// Module provides the Redis-backed tag cache.
var Module = fx.Module("cache",
	fx.Provide(New),
)

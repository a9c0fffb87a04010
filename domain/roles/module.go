package roles

import "go.uber.org/fx"

// Module provides the roles domain dependencies.
var Module = fx.Module("roles",
	fx.Provide(NewRepository),
)

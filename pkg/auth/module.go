package auth

import "go.uber.org/fx"

// Module provides the authentication middleware and the SSO service.
var Module = fx.Module("auth",
	fx.Provide(
		NewMiddleware,
		NewSSOService,
	),
)

package password

import "go.uber.org/fx"

// Module provides the Argon2id hasher with the default parameters.
var Module = fx.Module("password",
	fx.Provide(func() *Hasher {
		return NewHasher(DefaultTime, DefaultMemory, DefaultThreads)
	}),
)

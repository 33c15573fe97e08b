package kv

import "go.uber.org/fx"

var Module = fx.Module("storage.kv",
	fx.Provide(NewAttemptStore),
	fx.Provide(NewDrainer),
)

package authorization

import "go.uber.org/fx"

var Module = fx.Module("authorization",
	fx.Provide(New),
	fx.Provide(func(a *CasbinAuthorizer) Authorizer { return a }),
)

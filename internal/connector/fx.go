package connector

import (
	"github.com/railzwaylabs/payrail/internal/config"
	"github.com/railzwaylabs/payrail/internal/connector/adapters/adyen"
	"github.com/railzwaylabs/payrail/internal/connector/adapters/khalti"
	"github.com/railzwaylabs/payrail/internal/connector/adapters/stripe"
	"github.com/railzwaylabs/payrail/internal/connector/adapters/xendit"
	"github.com/railzwaylabs/payrail/internal/connector/domain"
	"github.com/railzwaylabs/payrail/internal/connector/service"
	"go.uber.org/fx"
)

var Module = fx.Module("connector",
	fx.Provide(func() *Registry {
		return NewRegistry(
			stripe.NewFactory(),
			adyen.NewFactory(),
			xendit.NewFactory(),
			khalti.NewFactory(),
		)
	}),
	fx.Provide(func(cfg config.ConnectorsConfig) domain.Endpoints { return cfg }),
	service.Module,
)

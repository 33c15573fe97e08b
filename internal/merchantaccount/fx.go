package merchantaccount

import (
	"github.com/railzwaylabs/payrail/internal/merchantaccount/repository"
	"github.com/railzwaylabs/payrail/internal/merchantaccount/service"
	"go.uber.org/fx"
)

var Module = fx.Module("merchantaccount.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)

package apikey

import (
	"github.com/railzwaylabs/payrail/internal/apikey/repository"
	"github.com/railzwaylabs/payrail/internal/apikey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

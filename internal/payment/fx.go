package payment

import (
	"github.com/railzwaylabs/payrail/internal/config"
	"github.com/railzwaylabs/payrail/internal/payment/domain"
	"github.com/railzwaylabs/payrail/internal/payment/repository"
	"github.com/railzwaylabs/payrail/internal/payment/service"
	"github.com/railzwaylabs/payrail/internal/storage/kv"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	kv.Module,
	fx.Provide(repository.NewIntentRepository),
	fx.Provide(repository.NewRefundRepository),
	fx.Provide(repository.NewAttemptStore),
	fx.Provide(attemptRepository),
	fx.Provide(service.NewDispatcher),
	fx.Provide(service.NewPaymentsService),
	fx.Provide(func(s *service.PaymentsService) domain.PaymentsService { return s }),
	fx.Provide(service.NewRefundsService),
	fx.Provide(func(s *service.RefundsService) domain.RefundsService { return s }),
)

// attemptRepository picks where attempts are written for the configured storage mode.
func attemptRepository(cfg config.Config, db *repository.AttemptStore, store *kv.AttemptStore) domain.AttemptRepository {
	if cfg.Storage.Mode == config.StorageModeRedisKV {
		return store
	}
	return db
}

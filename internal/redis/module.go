package redis

import (
	"context"

	"github.com/railzwaylabs/payrail/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("redis",
	fx.Provide(NewClient),
)

// NewClient connects to the shared Redis instance used for KV attempt storage and the
// drainer stream. Ping runs on start so a missing Redis fails the boot, not the first write.
func NewClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.Storage.Mode != config.StorageModeRedisKV {
				return nil
			}
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			log.Info("closing redis client")
			return client.Close()
		},
	})
	return client
}

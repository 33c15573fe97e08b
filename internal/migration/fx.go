package migration

import (
	"context"

	"github.com/railzwaylabs/payrail/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, db *gorm.DB, log *zap.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return Run(ctx, cfg, db, log)
			},
		})
	}),
)

// GateModule provides the schema gate for processes that serve traffic against an already
// migrated database.
var GateModule = fx.Module("schema_gate",
	fx.Provide(NewSchemaGate),
)

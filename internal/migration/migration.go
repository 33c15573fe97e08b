package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	apikeydomain "github.com/railzwaylabs/payrail/internal/apikey/domain"
	"github.com/railzwaylabs/payrail/internal/config"
	mcadomain "github.com/railzwaylabs/payrail/internal/merchantaccount/domain"
	paymentdomain "github.com/railzwaylabs/payrail/internal/payment/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists the tables owned by this service, for drivers without SQL migrations.
var Models = []any{
	&mcadomain.MerchantConnectorAccount{},
	&apikeydomain.APIKey{},
	&paymentdomain.PaymentIntent{},
	&paymentdomain.PaymentAttempt{},
	&paymentdomain.Refund{},
}

// Run brings the schema up to date. Postgres gets the embedded SQL migrations over a
// dedicated connection. mysql and sqlite are migrated from the gorm models.
func Run(ctx context.Context, cfg config.Config, db *gorm.DB, log *zap.Logger) error {
	log = log.Named("migration")
	if !cfg.Database.UsesSQLMigrations() {
		if err := AutoMigrate(ctx, db); err != nil {
			return err
		}
		log.Info("schema migrated from models",
			zap.String("driver", cfg.Database.Driver),
			zap.Int("tables", len(Models)),
		)
		return nil
	}

	sqlDB, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer sqlDB.Close()
	sqlDB.SetMaxOpenConns(1)

	return RunMigrations(ctx, sqlDB, log)
}

func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(Models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// RunMigrations applies the embedded migrations under the advisory lock and records the
// resulting schema state.
func RunMigrations(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer conn.Close()

	unlock, err := acquireAdvisoryLock(ctx, conn)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(context.Background()); err != nil {
			log.Warn("release migration lock", zap.Error(err))
		}
	}()

	latest, err := LatestMigrationVersion()
	if err != nil {
		return err
	}
	checksum, err := MigrationsChecksum()
	if err != nil {
		return err
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	before, err := ensureNotDirty(migrator)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	after, err := ensureNotDirty(migrator)
	if err != nil {
		return err
	}
	if after != latest {
		return fmt.Errorf("schema version mismatch after migrate: got %d want %d", after, latest)
	}

	if err := recordSchemaState(ctx, conn, after, checksum); err != nil {
		return err
	}
	log.Info("migrations applied", zap.Uint("from", before), zap.Uint("to", after), zap.String("checksum", checksum))
	return nil
}

func ensureNotDirty(migrator *migrate.Migrate) (uint, error) {
	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("database migrations are dirty at version %d", version)
	}
	return version, nil
}

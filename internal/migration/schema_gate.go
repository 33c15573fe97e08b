package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/railzwaylabs/payrail/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var (
	ErrSchemaStateNotFound    = errors.New("schema_state_not_found")
	ErrSchemaVersionMismatch  = errors.New("schema_version_mismatch")
	ErrSchemaChecksumMismatch = errors.New("schema_checksum_mismatch")
)

// SchemaGate reports whether the database schema matches the migrations built into this
// binary. Serving processes refuse to start against a stale schema.
type SchemaGate interface {
	MustBeActive(ctx context.Context) error
}

type schemaState struct {
	SchemaVersion string    `gorm:"column:schema_version"`
	Checksum      *string   `gorm:"column:checksum"`
	AppliedAt     time.Time `gorm:"column:applied_at"`
}

type schemaGate struct {
	db               *gorm.DB
	expectedVersion  string
	expectedChecksum string
}

type noopGate struct{}

func (noopGate) MustBeActive(context.Context) error { return nil }

// NewSchemaGate checks schema_state on postgres. Schemas built from the models carry no
// recorded state.
func NewSchemaGate(cfg config.Config, db *gorm.DB) (SchemaGate, error) {
	if !cfg.Database.UsesSQLMigrations() {
		return noopGate{}, nil
	}
	return newSchemaGate(db)
}

func newSchemaGate(db *gorm.DB) (*schemaGate, error) {
	if db == nil {
		return nil, errors.New("schema gate requires database handle")
	}
	version, err := LatestMigrationVersion()
	if err != nil {
		return nil, err
	}
	checksum, err := MigrationsChecksum()
	if err != nil {
		return nil, err
	}
	return &schemaGate{
		db:               db,
		expectedVersion:  fmt.Sprintf("%d", version),
		expectedChecksum: checksum,
	}, nil
}

func (g *schemaGate) MustBeActive(ctx context.Context) error {
	var state schemaState
	result := g.db.WithContext(ctx).Table("schema_state").
		Select("schema_version, checksum, applied_at").
		Where("id = ?", true).
		Limit(1).
		Scan(&state)
	if result.Error != nil {
		return fmt.Errorf("load schema state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSchemaStateNotFound
	}

	version := strings.TrimSpace(state.SchemaVersion)
	if version != g.expectedVersion {
		return fmt.Errorf("%w: state=%s expected=%s", ErrSchemaVersionMismatch, version, g.expectedVersion)
	}
	if state.Checksum != nil && strings.TrimSpace(*state.Checksum) != "" {
		if strings.TrimSpace(*state.Checksum) != g.expectedChecksum {
			return fmt.Errorf("%w: state=%s expected=%s", ErrSchemaChecksumMismatch, *state.Checksum, g.expectedChecksum)
		}
	}
	return nil
}

// EnforceSchemaGate fails startup when the schema is not current.
func EnforceSchemaGate(lc fx.Lifecycle, gate SchemaGate) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return gate.MustBeActive(ctx)
		},
	})
}

package migration

import (
	"context"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/payrail/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := upMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for i, f := range files {
		assert.EqualValues(t, i+1, f.version, "versions must be contiguous")
		down := strings.TrimSuffix(f.name, ".up.sql") + ".down.sql"
		_, err := embeddedMigrations.ReadFile(migrationsDir + "/" + down)
		assert.NoError(t, err, "missing %s", down)
	}

	latest, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, files[len(files)-1].version, latest)
}

func TestMigrationsChecksumIsStable(t *testing.T) {
	a, err := MigrationsChecksum()
	require.NoError(t, err)
	b, err := MigrationsChecksum()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestParseMigrationVersion(t *testing.T) {
	tests := []struct {
		name string
		want uint
		ok   bool
	}{
		{"000003_payments.up.sql", 3, true},
		{"12_x.up.sql", 12, true},
		{"payments.up.sql", 0, false},
		{"000000_zero.up.sql", 0, false},
		{"abc_payments.up.sql", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseMigrationVersion(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestAutoMigrateSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(context.Background(), db))
	for _, table := range []string{"merchant_connector_accounts", "api_keys", "payment_intents", "payment_attempts", "refunds"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestRunMigratesMySQLFromModels(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	// No postgres connection is opened for mysql; the handle passed in is migrated directly.
	cfg := config.Config{Database: config.DatabaseConfig{Driver: "mysql", DSN: "root:pw@tcp(127.0.0.1:1)/payrail"}}
	require.NoError(t, Run(context.Background(), cfg, db, zap.NewNop()))
	assert.True(t, db.Migrator().HasTable("payment_intents"))
	assert.True(t, db.Migrator().HasTable("refunds"))
}

package db

import (
	"testing"

	"github.com/railzwaylabs/payrail/internal/config"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite(t *testing.T) {
	cfg := config.Config{
		AppName: "payrail-test",
		Database: config.DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "file::memory:",
			MaxOpenConns: 1,
		},
	}
	db, err := Open(cfg)
	require.NoError(t, err)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	require.Equal(t, 1, one)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(config.Config{Database: config.DatabaseConfig{Driver: "oracle"}})
	require.Error(t, err)
}

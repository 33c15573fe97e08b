package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "payrail", cfg.AppName)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StorageModeDB, cfg.Storage.Mode)
	assert.Equal(t, "grpc", cfg.Observability.OTLPProtocol)
	assert.Equal(t, 30*time.Second, cfg.Connectors.Timeout)
	assert.Equal(t, "https://api.stripe.com/", cfg.Connectors.BaseURL("stripe"))
	assert.Equal(t, "https://api.xendit.co/", cfg.Connectors.BaseURL(" Xendit "))
	assert.Equal(t, "", cfg.Connectors.BaseURL("unknown"))
}

func TestLoadConnectorOverrideFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("STRIPE_BASE_URL", "http://localhost:12111")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:12111/", cfg.Connectors.BaseURL("stripe"))
}

func TestLoadRejectsUnknownStorageMode(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("STORAGE_MODE", "memory")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payrail.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connectors:\n  adyen: http://adyen.local/v71\n"), 0o600))

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://adyen.local/v71/", cfg.Connectors.BaseURL("adyen"))
	assert.Equal(t, "https://api.stripe.com/", cfg.Connectors.BaseURL("stripe"))
}

func TestConnectorsConfigReplace(t *testing.T) {
	c := NewConnectorsConfig(nil, 0)
	assert.Equal(t, 30*time.Second, c.Timeout)

	c.replace(map[string]string{"khalti": "https://khalti.com/api/v2"})
	assert.Equal(t, "https://khalti.com/api/v2/", c.BaseURL("khalti"))
	assert.Equal(t, "https://api.stripe.com/", c.BaseURL("stripe"))
}

func TestReloadConnectorsKeepsEnvOverrides(t *testing.T) {
	t.Setenv("STRIPE_BASE_URL", "https://stripe-sandbox.internal")

	v := viper.New()
	v.AutomaticEnv()
	v.Set("connectors", map[string]any{
		"stripe": "https://api.stripe.com/",
		"Xendit": "http://xendit.local",
	})

	c := NewConnectorsConfig(nil, 0)
	reloadConnectors(v, c)
	assert.Equal(t, "https://stripe-sandbox.internal/", c.BaseURL("stripe"))
	assert.Equal(t, "http://xendit.local/", c.BaseURL("xendit"))
	assert.Equal(t, "https://dev.khalti.com/api/v2/", c.BaseURL("khalti"))
}

func TestConfigFileChangeKeepsEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payrail.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connectors:\n  adyen: http://adyen.local/v71\n"), 0o600))

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("STRIPE_BASE_URL", "https://stripe-sandbox.internal/")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://stripe-sandbox.internal/", cfg.Connectors.BaseURL("stripe"))

	updated := "connectors:\n  adyen: http://adyen-2.local/v71\n  stripe: https://api.stripe.com/\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	assert.Eventually(t, func() bool {
		return cfg.Connectors.BaseURL("adyen") == "http://adyen-2.local/v71/"
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "https://stripe-sandbox.internal/", cfg.Connectors.BaseURL("stripe"))
}

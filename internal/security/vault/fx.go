package vault

import (
	"strings"

	"github.com/railzwaylabs/payrail/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("security.vault",
	fx.Provide(
		func(cfg config.Config) (Provider, error) {
			var previous []string
			if raw := strings.TrimSpace(cfg.Vault.PreviousKeys); raw != "" {
				previous = strings.Split(raw, ",")
			}
			return NewFactory(Config{
				Provider:     cfg.Vault.Provider,
				AESKey:       cfg.Vault.AESKey,
				PreviousKeys: previous,
			})
		},
	),
)

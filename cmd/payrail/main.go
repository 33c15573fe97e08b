// @title           Payrail API
// @version         1.0
// @description     Payment orchestration API routing payments and refunds to connectors

// @host      localhost:8080
// @BasePath  /
// @Schemes 	http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/payrail/internal/apikey"
	apikeydomain "github.com/railzwaylabs/payrail/internal/apikey/domain"
	"github.com/railzwaylabs/payrail/internal/authorization"
	"github.com/railzwaylabs/payrail/internal/clock"
	"github.com/railzwaylabs/payrail/internal/config"
	"github.com/railzwaylabs/payrail/internal/connector"
	"github.com/railzwaylabs/payrail/internal/merchantaccount"
	"github.com/railzwaylabs/payrail/internal/migration"
	"github.com/railzwaylabs/payrail/internal/observability"
	"github.com/railzwaylabs/payrail/internal/payment"
	"github.com/railzwaylabs/payrail/internal/redis"
	"github.com/railzwaylabs/payrail/internal/scheduler"
	"github.com/railzwaylabs/payrail/internal/security/vault"
	"github.com/railzwaylabs/payrail/internal/server"
	"github.com/railzwaylabs/payrail/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "payrail",
		Short:   "Payrail payment orchestration",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newServeCmd(), newSchedulerCmd(), newAllCmd(), newAPIKeyCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and record the schema state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run payment sync and the KV drainer",
		RunE: func(cmd *cobra.Command, args []string) error {
			runScheduler()
			return nil
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then start the API and the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runMonolith()
			return nil
		},
	}
}

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage merchant API keys",
	}

	var (
		merchantID string
		name       string
		role       string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key and print its secret once",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := snowflake.ParseString(strings.TrimSpace(merchantID))
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid --merchant-id %q", merchantID)
			}
			return runCreateAPIKey(cmd, apikeydomain.CreateInput{
				MerchantID: id,
				Name:       name,
				Role:       apikeydomain.Role(role),
			})
		},
	}
	create.Flags().StringVar(&merchantID, "merchant-id", "", "merchant the key belongs to")
	create.Flags().StringVar(&name, "name", "default", "key name")
	create.Flags().StringVar(&role, "role", string(apikeydomain.RoleMerchantAdmin), "merchant_admin, merchant_developer or merchant_readonly")
	_ = create.MarkFlagRequired("merchant-id")

	cmd.AddCommand(create)
	return cmd
}

// infra provides configuration, logging, telemetry, ids, the database and Redis.
func infra() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
	)
}

func domains() fx.Option {
	return fx.Options(
		vault.Module,
		connector.Module,
		merchantaccount.Module,
		apikey.Module,
		authorization.Module,
		payment.Module,
	)
}

func schemaGate() fx.Option {
	return fx.Options(
		migration.GateModule,
		fx.Invoke(migration.EnforceSchemaGate),
	)
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe() {
	app := fx.New(
		infra(),
		schemaGate(),
		domains(),
		server.Module,
	)
	app.Run()
}

func runScheduler() {
	app := fx.New(
		infra(),
		schemaGate(),
		domains(),
		scheduler.Module,
		fx.Invoke(startScheduler),
	)
	app.Run()
}

func runMonolith() {
	app := fx.New(
		infra(),
		schemaGate(),
		domains(),
		server.Module,
		scheduler.Module,
		fx.Invoke(startScheduler),
	)
	app.Run()
}

func runCreateAPIKey(cmd *cobra.Command, input apikeydomain.CreateInput) error {
	var svc apikeydomain.Service
	app := fx.New(
		infra(),
		schemaGate(),
		apikey.Module,
		fx.Populate(&svc),
		fx.NopLogger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = app.Stop(context.Background()) }()

	key, secret, err := svc.Create(ctx, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "id:     %s\nrole:   %s\nsecret: %s\n", key.ID, key.Role, secret)
	return nil
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}

func startScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			return nil
		},
		OnStop: s.Stop,
	})
}

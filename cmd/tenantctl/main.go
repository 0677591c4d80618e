// Package main implements tenantctl, the command-line tool for managing the
// tenant registry and its schema.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tenancy/backend/internal/application/tenancy"
	"github.com/tenancy/backend/internal/infrastructure/config"
	"github.com/tenancy/backend/internal/infrastructure/logger"
	"github.com/tenancy/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

var version = "dev"

// app is what tenant commands operate on
type app struct {
	tenants *tenancy.TenantService
	close   func() error
}

// opener builds the app. Tests replace it to run without a database.
type opener func(logLevel string) (*app, error)

func main() {
	if err := newRootCmd(openApp).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:   "tenantctl",
		Short: "Manage tenants and their configuration",
		Long: `tenantctl manages the tenant registry directly against the database.

Configuration is read the same way the server reads it: config.toml and
TENANCY_* environment variables.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	withApp := func(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := open(logLevel)
			if err != nil {
				return err
			}
			defer func() {
				if a.close != nil {
					_ = a.close()
				}
			}()
			return fn(cmd, a, args)
		}
	}

	root.AddCommand(tenantCommands(withApp)...)
	root.AddCommand(newPipesCmd())
	root.AddCommand(newMigrateCmd(&logLevel))
	return root
}

func newLogger(level string) (*zap.Logger, error) {
	return logger.New(&logger.Config{
		Level:      level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
}

func openApp(logLevel string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := newLogger(logLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(log, logger.MapGormLogLevel(logLevel)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	repo := persistence.NewGormTenantRepository(db.DB)
	return &app{
		tenants: tenancy.NewTenantService(repo, nil, nil, log),
		close: func() error {
			_ = log.Sync()
			return db.Close()
		},
	}, nil
}

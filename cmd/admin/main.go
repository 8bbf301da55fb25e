package main

import (
	"context"
	"database/sql"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-platform/internal/app"
	"github.com/jwalitptl/clinic-platform/internal/config"
	"github.com/jwalitptl/clinic-platform/internal/repository/postgres"
	"github.com/jwalitptl/clinic-platform/pkg/logger"
	"github.com/jwalitptl/clinic-platform/pkg/messaging"
)

type commandLine struct {
	configDir string
	cfg       *config.Config
	logger    *logger.Logger

	openDB  func(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error)
	openApp func(ctx context.Context, cfg *config.Config) (*app.App, error)
}

func newCommandLine() *commandLine {
	cli := &commandLine{
		logger: logger.NewLogger(&logger.Config{Level: logger.InfoLevel, Console: true}),
	}
	cli.openDB = func(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
		db, err := postgres.NewDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return db.DB, nil
	}
	cli.openApp = func(ctx context.Context, cfg *config.Config) (*app.App, error) {
		// admin tasks write to the outbox; the worker publishes later
		return app.New(ctx, cfg,
			app.WithLogger(cli.logger),
			app.WithBroker(messaging.NewMemoryBroker()),
			app.WithRegistry(prometheus.NewRegistry()),
		)
	}
	return cli
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Clinic platform administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cli.cfg != nil {
				return nil
			}
			var paths []string
			if cli.configDir != "" {
				paths = append(paths, cli.configDir)
			}
			cfg, err := config.Load(paths...)
			if err != nil {
				return err
			}
			cli.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cli.configDir, "config-dir", "", "directory holding config.yaml")

	root.AddCommand(
		cli.migrateCmd(),
		cli.seedPlansCmd(),
		cli.createAdminCmd(),
		cli.resetPasswordCmd(),
	)
	return root
}

func main() {
	cli := newCommandLine()
	if err := cli.rootCmd().Execute(); err != nil {
		cli.logger.Error(err, "admin command failed")
		os.Exit(1)
	}
}

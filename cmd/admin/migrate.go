package main

import (
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-platform/migrations"
)

var gooseRunFunc = goose.RunContext // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS]",
		Short: "Run database migrations",
		Long: `Apply the embedded SQL migrations with goose.

Commands:
  up                   Migrate to the most recent version
  up-by-one            Migrate up by a single version
  up-to VERSION        Migrate up to a specific version
  down                 Roll back by one version
  down-to VERSION      Roll back to a specific version
  redo                 Re-run the latest migration
  reset                Roll back all migrations
  status               Print the status of all migrations
  version              Print the current version of the database`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := cli.openDB(ctx, cli.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			goose.SetBaseFS(migrations.FS)
			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}
			return gooseRunFunc(ctx, args[0], db, ".", args[1:]...)
		},
	}
}

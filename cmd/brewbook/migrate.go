package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"brewbook/internal/storage"
)

func (c *cli) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if c.cfg.DB.DSN == "" {
				return errors.New("db.dsn (or DATABASE_URL) must be set")
			}
			dbCfg := c.cfg.DB
			dbCfg.AutoMigrate = false
			db, err := storage.Open(ctx, dbCfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := storage.Migrate(ctx, db.DB); err != nil {
				return err
			}
			version, err := storage.MigrationVersion(ctx, db.DB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database at migration version %d\n", version)
			return nil
		},
	}
}

package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"echomind/internal/db"
)

func init() {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrates or initializes the datastore to the latest schema.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return errors.WithMessage(err, "could not load config")
			}
			dsn := cfg.DatastoreDSN()
			if dsn == "" {
				return errors.Errorf("datastore is not configured, set %s", cfg.Datastore.DSNEnv)
			}
			dbc, err := db.New(cfg.Datastore.Driver, dsn)
			if err != nil {
				return errors.WithMessage(err, "could not connect to db")
			}
			defer dbc.Close()

			if err := dbc.UpdateSchema(cmd.Context()); err != nil {
				return errors.WithMessage(err, "could not migrate db")
			}
			return nil
		},
	}
	rootCmd.AddCommand(cmd)
}

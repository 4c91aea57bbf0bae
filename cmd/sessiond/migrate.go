package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/clustersession/pkg/config"
	"github.com/dmitrymomot/clustersession/pkg/pg"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the postgres session store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := loadAppConfig()
		if err != nil {
			return err
		}
		log := newLogger(app)

		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return err
		}
		pool, err := pg.Connect(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pg.Migrate(cmd.Context(), pool, cfg, log); err != nil {
			return err
		}
		log.InfoContext(cmd.Context(), "session store schema is up to date")
		return nil
	},
}

package main

import (
	"fmt"

	"github.com/jrsteele09/go-shh/internal/database"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database schema",
	Long:  "Creates the secret table and its indexes. Running it against an initialised database is a no-op.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		ctx, cancel := signalContext()
		defer cancel()

		db, err := database.Open(ctx, cfg.GetDatabaseDriver(), cfg.GetDatabaseDSN(), database.PoolConfig{MaxOpenConns: 1})
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.InitSchema(ctx, db); err != nil {
			return err
		}
		log.Info().Str("driver", cfg.GetDatabaseDriver()).Msg("Database schema initialised")
		return nil
	},
}

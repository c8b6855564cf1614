package main

import (
	"fmt"

	"github.com/jrsteele09/go-shh/internal/database"
	"github.com/jrsteele09/go-shh/secrets"
	"github.com/jrsteele09/go-shh/sweeper"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Periodically delete expired secrets",
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

		db, err := database.Open(ctx, cfg.GetDatabaseDriver(), cfg.GetDatabaseDSN(), database.PoolConfig{
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: cfg.GetDatabaseConnMaxLifetime(),
		})
		if err != nil {
			return err
		}
		defer db.Close()

		sweeper.New(secrets.NewSQLStore(db), cfg.GetSweepInterval()).Run(ctx)
		return nil
	},
}

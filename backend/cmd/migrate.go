package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"finscholars/backend/utils"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := utils.InitDB(cfg)
		if err != nil {
			return fmt.Errorf("init database: %w", err)
		}
		if err := utils.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("schema up to date", "driver", cfg.DBDriver)
		return nil
	},
}

// Package cmd holds the finscholars command line.
package cmd

import (
	"github.com/spf13/cobra"

	"finscholars/backend/config"
	"finscholars/backend/utils"
)

var rootCmd = &cobra.Command{
	Use:   "finscholars",
	Short: "FinScholars learning backend",
	Long:  "FinScholars generates financial-literacy lessons and quizzes, grades answers and tracks learner progress.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("port", "", "Listen port (overrides SERVER_PORT or MOCK_SERVER_PORT)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mockCmd)
	rootCmd.AddCommand(migrateCmd)
}

// bootstrap loads configuration and builds the logger every command starts from.
func bootstrap() (*config.Config, *utils.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := utils.InitLogger(cfg.Env)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

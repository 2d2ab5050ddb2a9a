package cmd

import (
	"github.com/spf13/cobra"

	"finscholars/backend/mockserver"
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Run the in-memory mock API for frontend work",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		port := cfg.MockServerPort
		if p, _ := cmd.Flags().GetString("port"); p != "" {
			port = p
		}
		static, _ := cmd.Flags().GetString("static")
		if static == "" {
			static = cfg.StaticDir
		}

		app := mockserver.New().App(static, logger)
		logger.Info("mock server starting", "port", port, "static", static)
		return app.Listen(":" + port)
	},
}

func init() {
	mockCmd.Flags().String("static", "", "Directory of frontend files to serve")
}

package main

import (
	"github.com/spf13/cobra"

	"carecohort/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  `Starts the HTTP API with the configuration from --config, CARECOHORT_* environment variables and the defaults.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.NewApplication(nil)
			if err != nil {
				return err
			}
			return application.Run()
		},
	}
}

// Command server runs the carecohort HTTP API with configuration from
// CARECOHORT_CONFIG, CARECOHORT_* environment variables and the defaults.
package main

import (
	"log/slog"
	"os"

	"carecohort/internal/app"
)

func main() {
	application, err := app.NewApplication(nil)
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

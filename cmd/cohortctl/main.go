// Command cohortctl runs cohort cost analyses from the command line and
// serves the HTTP API.
//
// Usage:
//
//	cohortctl suggest --roster beneficiarios.csv --events ficha.xlsx
//	cohortctl run --roster beneficiarios.csv --events ficha.xlsx --ref 2024-06 --out ./saida
//	cohortctl serve
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"carecohort/internal/config"
	"carecohort/internal/infrastructure"
	"carecohort/pkg/contracts"
)

type rootOptions struct {
	configFile string
	logLevel   string
	verbose    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "cohortctl",
		Short:         "Cohort cost analytics for healthcare programs",
		Long:          `cohortctl joins a program roster with service events, computes tenure cohorts and cost metrics, and exports the results.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       contracts.GetVersionString(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.configFile != "" {
				return os.Setenv(config.ConfigFileEnv, opts.configFile)
			}
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (or set "+config.ConfigFileEnv+")")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level for batch commands: debug, info, warn, error")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Shorthand for --log-level=debug")

	cmd.AddCommand(newSuggestCmd())
	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// batchLogger writes JSON records to stderr so stdout stays machine readable.
func (o *rootOptions) batchLogger(stderr io.Writer) *slog.Logger {
	level := o.logLevel
	if o.verbose {
		level = "debug"
	}
	return infrastructure.NewLoggerWithWriter(stderr, config.LoggingConfig{Level: level, Format: "json"})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), contracts.GetFullVersionString())
		},
	}
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"carecohort/internal/cohort"
	"carecohort/internal/infrastructure"
	"carecohort/internal/services"
	"carecohort/internal/tabular"
	"carecohort/pkg/contracts/domain"
)

// Batch output files.
const (
	consolidatedFile = "consolidado.xlsx"
	outliersFile     = "outliers.csv"
	trendFile        = "trend.json"
	summaryFile      = "summary.json"
)

type runOptions struct {
	rosterPath  string
	eventsPath  string
	mappingPath string
	reference   string
	outDir      string
	zThreshold  float64
	unique      bool
	timeout     time.Duration
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the cohort analysis on two files and write the results",
		Long: `Joins the roster with the event table, computes tenure cohorts, relative
months, the cost trend and outliers, and writes:

  consolidado.xlsx  consolidated rows (sheet "Consolidado")
  outliers.csv      beneficiaries above the z-score threshold
  trend.json        linear cost trend, or null
  summary.json      run counts

Without --mapping the top suggestion of every concept is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(infrastructure.EnsureTraceID(cmd.Context()), opts.timeout)
			defer cancel()

			logger := root.batchLogger(cmd.ErrOrStderr())
			summary, err := runBatch(ctx, opts, logger)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d consolidated rows, %d unmatched events, %d lives, %d outliers -> %s\n",
				summary.ConsolidatedRows, summary.UnmatchedEvents, summary.DistinctLives, summary.Outliers, opts.outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.rosterPath, "roster", "", "Roster table (.csv or .xlsx)")
	cmd.Flags().StringVar(&opts.eventsPath, "events", "", "Service event table (.csv or .xlsx)")
	cmd.Flags().StringVar(&opts.mappingPath, "mapping", "", "Column mapping JSON (benef_mapping, ficha_mapping)")
	cmd.Flags().StringVar(&opts.reference, "ref", "", "Last reference month, e.g. 2024-06 or 2024-06-30 (default: current month)")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "Output directory")
	cmd.Flags().Float64Var(&opts.zThreshold, "z", cohort.DefaultZThreshold, "Outlier z-score threshold")
	cmd.Flags().BoolVar(&opts.unique, "unique-ids", false, "Fail when the roster repeats an identifier")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Run timeout")
	_ = cmd.MarkFlagRequired("roster")
	_ = cmd.MarkFlagRequired("events")
	return cmd
}

func runBatch(ctx context.Context, opts *runOptions, logger *slog.Logger) (*cohort.Summary, error) {
	var ref time.Time
	if opts.reference != "" {
		parsed, err := services.ParseReference(opts.reference)
		if err != nil {
			return nil, err
		}
		ref = parsed
	}

	var roster, events domain.Table
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		roster, err = readTable(opts.rosterPath)
		return err
	})
	g.Go(func() (err error) {
		events, err = readTable(opts.eventsPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mapping, err := loadMapping(opts.mappingPath, roster, events)
	if err != nil {
		return nil, err
	}

	res, err := cohort.NewAnalyzer(cohort.AnalyzerConfig{
		ZThreshold:       opts.zThreshold,
		RequireUniqueIDs: opts.unique,
	}, logger).Run(ctx, cohort.Input{
		Roster:        roster,
		Events:        events,
		RosterMapping: mapping.Roster,
		EventMapping:  mapping.Events,
		Reference:     ref,
	})
	if err != nil {
		return nil, err
	}

	if err := writeOutputs(opts.outDir, res); err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "batch run written", "out_dir", opts.outDir, "rows", len(res.Rows))
	return &res.Summary, nil
}

// loadMapping reads the mapping file, or derives one from the suggestions
// when path is empty.
func loadMapping(path string, roster, events domain.Table) (mappingFile, error) {
	if path == "" {
		return mappingFile{
			Roster: cohort.MappingFromSuggestions(cohort.SuggestMapping(roster.Columns, cohort.RosterConcepts, 1)),
			Events: cohort.MappingFromSuggestions(cohort.SuggestMapping(events.Columns, cohort.EventConcepts, 1)),
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return mappingFile{}, fmt.Errorf("read mapping: %w", err)
	}
	var m mappingFile
	if err := json.Unmarshal(data, &m); err != nil {
		return mappingFile{}, fmt.Errorf("parse mapping %s: %w", path, err)
	}
	return m, nil
}

func writeOutputs(dir string, res *cohort.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var xlsx bytes.Buffer
	if err := tabular.WriteXLSX(&xlsx, tabular.SheetConsolidated, cohort.ConsolidatedTable(res.Rows), tabular.XLSXOptions{
		NumericColumns: services.ConsolidatedNumericColumns,
	}); err != nil {
		return err
	}

	var csvBuf bytes.Buffer
	if err := tabular.WriteCSV(&csvBuf, cohort.OutliersTable(res.Outliers), tabular.CSVOptions{Separator: ';', BOMPrefix: true}); err != nil {
		return err
	}

	trend, err := json.MarshalIndent(res.Trend, "", "  ")
	if err != nil {
		return fmt.Errorf("encode trend: %w", err)
	}
	summary, err := json.MarshalIndent(res.Summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	files := map[string][]byte{
		consolidatedFile: xlsx.Bytes(),
		outliersFile:     csvBuf.Bytes(),
		trendFile:        trend,
		summaryFile:      summary,
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

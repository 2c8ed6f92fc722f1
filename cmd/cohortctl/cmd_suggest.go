package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"carecohort/internal/cohort"
	"carecohort/internal/tabular"
	"carecohort/pkg/contracts/domain"
)

type tableSuggestions struct {
	Columns     []string            `json:"columns"`
	Suggestions map[string][]string `json:"suggestions"`
}

type suggestOutput struct {
	Roster tableSuggestions `json:"beneficiarios"`
	Events tableSuggestions `json:"ficha"`
}

func newSuggestCmd() *cobra.Command {
	var (
		rosterPath string
		eventsPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest a column mapping for a roster and an event table",
		Long: `Reads both tables and ranks, for every concept, the raw columns that look
like it. The output is JSON; pass it through --emit-mapping to get a file
that "cohortctl run --mapping" accepts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			roster, err := readTable(rosterPath)
			if err != nil {
				return err
			}
			events, err := readTable(eventsPath)
			if err != nil {
				return err
			}

			out := suggestOutput{
				Roster: tableSuggestions{
					Columns:     roster.Columns,
					Suggestions: cohort.SuggestMapping(roster.Columns, cohort.RosterConcepts, limit),
				},
				Events: tableSuggestions{
					Columns:     events.Columns,
					Suggestions: cohort.SuggestMapping(events.Columns, cohort.EventConcepts, limit),
				},
			}

			var v interface{} = out
			if emit, _ := cmd.Flags().GetBool("emit-mapping"); emit {
				v = mappingFile{
					Roster: cohort.MappingFromSuggestions(out.Roster.Suggestions),
					Events: cohort.MappingFromSuggestions(out.Events.Suggestions),
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}

	cmd.Flags().StringVar(&rosterPath, "roster", "", "Roster table (.csv or .xlsx)")
	cmd.Flags().StringVar(&eventsPath, "events", "", "Service event table (.csv or .xlsx)")
	cmd.Flags().IntVar(&limit, "limit", cohort.DefaultSuggestionLimit, "Candidates per concept")
	cmd.Flags().Bool("emit-mapping", false, "Print the top candidate of every concept as a mapping file")
	_ = cmd.MarkFlagRequired("roster")
	_ = cmd.MarkFlagRequired("events")
	return cmd
}

// mappingFile is the on-disk column mapping, same shape as the API payload.
type mappingFile struct {
	Roster cohort.ColumnMapping `json:"benef_mapping"`
	Events cohort.ColumnMapping `json:"ficha_mapping"`
}

func readTable(path string) (domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Table{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := tabular.Read(f, filepath.Base(path))
	if err != nil {
		return domain.Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

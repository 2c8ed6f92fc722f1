package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"carecohort/internal/cohort"
	"carecohort/internal/config"
	"carecohort/internal/infrastructure"
	"carecohort/internal/storage"
	"carecohort/internal/tabular"
	"carecohort/pkg/contracts/domain"
	evt "carecohort/pkg/contracts/events"
)

// UploadFile is one uploaded table.
type UploadFile struct {
	Name   string
	Reader io.Reader
}

// UploadSummary describes stored inputs with a preview of both tables.
type UploadSummary struct {
	Status        string              `json:"status"`
	RosterRows    int                 `json:"rows_benef"`
	EventRows     int                 `json:"rows_ficha"`
	RosterPreview []map[string]string `json:"preview_benef"`
	EventPreview  []map[string]string `json:"preview_ficha"`
	Inputs        *storage.InputsMeta `json:"inputs,omitempty"`
}

// TableSuggestions lists the columns of a table and the candidates per
// concept.
type TableSuggestions struct {
	Columns     []string            `json:"columns"`
	Suggestions map[string][]string `json:"suggestions"`
}

// MappingSuggestions covers both input tables.
type MappingSuggestions struct {
	Roster TableSuggestions `json:"beneficiarios"`
	Events TableSuggestions `json:"ficha"`
}

// TenureRequest drives the tenure preview and download.
type TenureRequest struct {
	RosterMapping cohort.ColumnMapping
	Reference     string
}

// TenurePreview is the head of the roster with tenure columns appended.
type TenurePreview struct {
	Status    string              `json:"status"`
	Reference string              `json:"ref_calculada"`
	Rows      []map[string]string `json:"preview"`
	Total     int                 `json:"total_linhas"`
}

// RunRequest drives an analysis run.
type RunRequest struct {
	Mapping   storage.MappingConfig
	Reference string
	// ZThreshold overrides the configured outlier threshold when set.
	ZThreshold       *float64
	RequireUniqueIDs bool
}

// RunSummary is returned by a successful run.
type RunSummary struct {
	Status         string         `json:"status"`
	Summary        cohort.Summary `json:"summary"`
	FallbackWrites int            `json:"fallback_writes"`
}

// ResultsMeta describes how a results view was produced.
type ResultsMeta struct {
	RefDate *string        `json:"ref_date"`
	Filters cohort.Filters `json:"filters"`
}

// ResultsView is the dashboard payload of a round.
type ResultsView struct {
	Status string      `json:"status"`
	Meta   ResultsMeta `json:"meta"`
	cohort.Results
}

// RoundPublisher receives round lifecycle snapshots.
type RoundPublisher interface {
	PublishRound(ctx context.Context, snap evt.RoundSnapshot)
}

type noopPublisher struct{}

func (noopPublisher) PublishRound(context.Context, evt.RoundSnapshot) {}

// AnalysisService runs the cohort pipeline over stored rounds.
type AnalysisService struct {
	store     *storage.Store
	cfg       config.AnalysisConfig
	metrics   *infrastructure.BusinessMetrics
	logger    *slog.Logger
	locks     *roundLocks
	publisher RoundPublisher
}

// NewAnalysisService creates an analysis service. metrics may be nil.
func NewAnalysisService(store *storage.Store, cfg config.AnalysisConfig, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = config.DefaultPreviewRows
	}
	return &AnalysisService{
		store:     store,
		cfg:       cfg,
		metrics:   metrics,
		logger:    infrastructure.WithComponent(logger, "analysis_service"),
		locks:     newRoundLocks(),
		publisher: noopPublisher{},
	}
}

// SetPublisher routes upload and run snapshots to p. A nil p disables
// publishing.
func (s *AnalysisService) SetPublisher(p RoundPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	s.publisher = p
}

func (s *AnalysisService) publishStage(ctx context.Context, projectID, roundID string, stage evt.Stage, status evt.Status, err error, counts map[string]int) {
	snap := evt.RoundSnapshot{
		ProjectID: projectID,
		RoundID:   roundID,
		Stage:     stage,
		Status:    status,
		Counts:    counts,
		UpdatedAt: time.Now().UTC(),
	}
	if err != nil {
		snap.Error = err.Error()
	}
	s.publisher.PublishRound(ctx, snap)
}

// Upload parses both tables, creates the round if needed and stores them.
func (s *AnalysisService) Upload(ctx context.Context, projectID, roundID string, roster, events UploadFile) (summary *UploadSummary, err error) {
	logger := infrastructure.WithRound(s.logger, projectID, roundID)

	s.publishStage(ctx, projectID, roundID, evt.StageUpload, evt.StatusRunning, nil, nil)
	defer func() {
		if err != nil {
			s.publishStage(ctx, projectID, roundID, evt.StageUpload, evt.StatusFailed, err, nil)
			return
		}
		s.publishStage(ctx, projectID, roundID, evt.StageUpload, evt.StatusCompleted, nil, map[string]int{
			"rows_benef": summary.RosterRows,
			"rows_ficha": summary.EventRows,
		})
	}()

	var rosterTable, eventsTable domain.Table
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := tabular.Read(roster.Reader, roster.Name)
		if err != nil {
			return fmt.Errorf("%s: %w", storage.ArtifactRoster, err)
		}
		rosterTable = t
		return nil
	})
	g.Go(func() error {
		t, err := tabular.Read(events.Reader, events.Name)
		if err != nil {
			return fmt.Errorf("%s: %w", storage.ArtifactEvents, err)
		}
		eventsTable = t
		return nil
	})
	if err := g.Wait(); err != nil {
		infrastructure.WithError(logger, err).WarnContext(ctx, "upload rejected")
		return nil, err
	}
	s.metrics.RecordUpload(ctx, "roster", rosterTable.Len())
	s.metrics.RecordUpload(ctx, "events", eventsTable.Len())

	unlock := s.locks.lock(projectID, roundID)
	defer unlock()

	if _, err := s.store.EnsureRound(ctx, projectID, roundID); err != nil {
		return nil, err
	}
	meta, _, err := s.store.SaveInputs(ctx, projectID, roundID, rosterTable, eventsTable)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "inputs uploaded",
		slog.String("roster_file", roster.Name),
		slog.String("events_file", events.Name),
		slog.Int("roster_rows", rosterTable.Len()),
		slog.Int("event_rows", eventsTable.Len()))

	return &UploadSummary{
		Status:        "success",
		RosterRows:    rosterTable.Len(),
		EventRows:     eventsTable.Len(),
		RosterPreview: rosterTable.Head(s.cfg.PreviewRows).Records(),
		EventPreview:  eventsTable.Head(s.cfg.PreviewRows).Records(),
		Inputs:        meta,
	}, nil
}

// Suggestions ranks the stored columns against the known concepts.
func (s *AnalysisService) Suggestions(ctx context.Context, projectID, roundID string) (*MappingSuggestions, error) {
	roster, events, err := s.store.LoadInputs(ctx, projectID, roundID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordSuggestion(ctx)

	return &MappingSuggestions{
		Roster: TableSuggestions{
			Columns:     roster.Columns,
			Suggestions: cohort.SuggestMapping(roster.Columns, cohort.RosterConcepts, s.cfg.SuggestionLimit),
		},
		Events: TableSuggestions{
			Columns:     events.Columns,
			Suggestions: cohort.SuggestMapping(events.Columns, cohort.EventConcepts, s.cfg.SuggestionLimit),
		},
	}, nil
}

// PreviewTenure computes tenure for the head of the stored roster.
func (s *AnalysisService) PreviewTenure(ctx context.Context, projectID, roundID string, req TenureRequest) (*TenurePreview, error) {
	roster, err := s.store.LoadRoster(ctx, projectID, roundID)
	if err != nil {
		return nil, err
	}
	ref, err := ParseReference(req.Reference)
	if err != nil {
		return nil, err
	}

	table, err := cohort.PreviewTenure(roster, tenureMapping(req.RosterMapping), ref, s.cfg.PreviewRows)
	if err != nil {
		return nil, err
	}
	return &TenurePreview{
		Status:    "success",
		Reference: cohort.ReferenceMonth(ref).Format("2006-01-02"),
		Rows:      table.Records(),
		Total:     roster.Len(),
	}, nil
}

// TenureWorkbook computes tenure for the whole roster and renders it as an
// XLSX workbook.
func (s *AnalysisService) TenureWorkbook(ctx context.Context, projectID, roundID string, req TenureRequest) ([]byte, error) {
	roster, err := s.store.LoadRoster(ctx, projectID, roundID)
	if err != nil {
		return nil, err
	}
	ref, err := ParseReference(req.Reference)
	if err != nil {
		return nil, err
	}

	table, err := cohort.PreviewTenure(roster, tenureMapping(req.RosterMapping), ref, 0)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tabular.WriteXLSX(&buf, tabular.SheetTenurePreview, table, tabular.XLSXOptions{
		NumericColumns: []string{cohort.ColumnTenure},
	}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Run runs the pipeline over the stored inputs and saves the outputs
// together with the configuration that produced them. A failed run leaves
// the previous outputs and configuration in place. Runs of the same round
// are serialized.
func (s *AnalysisService) Run(ctx context.Context, projectID, roundID string, req RunRequest) (summary *RunSummary, err error) {
	ctx, span := infrastructure.StartSpan(ctx, "analysis.run",
		attribute.String("project_id", projectID),
		attribute.String("round_id", roundID))
	defer span.End()
	logger := infrastructure.WithRound(s.logger, projectID, roundID)

	s.publishStage(ctx, projectID, roundID, evt.StageAnalysis, evt.StatusRunning, nil, nil)
	defer func() {
		if err != nil {
			s.publishStage(ctx, projectID, roundID, evt.StageAnalysis, evt.StatusFailed, err, nil)
			return
		}
		s.publishStage(ctx, projectID, roundID, evt.StageAnalysis, evt.StatusCompleted, nil, map[string]int{
			"consolidated_rows": summary.Summary.ConsolidatedRows,
			"unmatched_events":  summary.Summary.UnmatchedEvents,
			"outliers":          summary.Summary.Outliers,
		})
	}()

	ref, err := ParseReference(req.Reference)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(projectID, roundID)
	defer unlock()

	roster, events, err := s.store.LoadInputs(ctx, projectID, roundID)
	if err != nil {
		return nil, err
	}

	zThreshold := s.cfg.ZThreshold
	if req.ZThreshold != nil {
		zThreshold = *req.ZThreshold
	}
	analyzer := cohort.NewAnalyzer(cohort.AnalyzerConfig{
		ZThreshold:       zThreshold,
		RequireUniqueIDs: req.RequireUniqueIDs || s.cfg.RequireUniqueIDs,
	}, logger)

	start := time.Now()
	res, err := analyzer.Run(ctx, cohort.Input{
		Roster:        roster,
		Events:        events,
		RosterMapping: req.Mapping.Roster,
		EventMapping:  req.Mapping.Events,
		Reference:     ref,
	})
	if err != nil {
		s.metrics.RecordAnalysisRun(ctx, time.Since(start), 0, 0, 0, err)
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	s.metrics.RecordAnalysisRun(ctx, time.Since(start), len(res.Rows), res.Summary.UnmatchedEvents, len(res.Outliers), nil)

	report, err := s.store.SaveOutputs(ctx, projectID, roundID, storage.Outputs{
		Rows:     res.Rows,
		Outliers: res.Outliers,
		Trend:    res.Trend,
		Summary:  &res.Summary,
	})
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	// saved after the outputs it describes
	mapping := req.Mapping
	settings := &storage.AnalysisSettings{
		Reference:        req.Reference,
		ZThreshold:       zThreshold,
		RequireUniqueIDs: req.RequireUniqueIDs,
	}
	if _, err := s.store.SaveConfig(ctx, projectID, roundID, storage.RoundConfig{Mapping: &mapping, Analysis: settings}); err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("rows", len(res.Rows)),
		attribute.Int("outliers", len(res.Outliers)))
	return &RunSummary{Status: "success", Summary: res.Summary, FallbackWrites: report.Fallbacks()}, nil
}

// DefaultFilters returns the dashboard filters used when a request names
// none: the saved filters of the round, else the configured defaults.
func (s *AnalysisService) DefaultFilters(ctx context.Context, projectID, roundID string) (cohort.Filters, error) {
	cfg, err := s.store.LoadConfig(ctx, projectID, roundID)
	if err != nil {
		return cohort.Filters{}, err
	}
	if cfg.Filters != nil {
		return *cfg.Filters, nil
	}
	return s.baseFilters(), nil
}

// baseFilters returns the configured defaults without looking at a round.
func (s *AnalysisService) baseFilters() cohort.Filters {
	f := cohort.DefaultFilters()
	if s.cfg.WindowCapMonths > 0 {
		f.WindowCapMonths = s.cfg.WindowCapMonths
	}
	return f
}

// SaveFilters stores the dashboard filters of a round.
func (s *AnalysisService) SaveFilters(ctx context.Context, projectID, roundID string, f cohort.Filters) error {
	unlock := s.locks.lock(projectID, roundID)
	defer unlock()

	_, err := s.store.SaveConfig(ctx, projectID, roundID, storage.RoundConfig{Filters: &f})
	return err
}

// Results builds the dashboard view of the last run. A nil filter uses
// DefaultFilters.
func (s *AnalysisService) Results(ctx context.Context, projectID, roundID string, f *cohort.Filters) (*ResultsView, error) {
	out, err := s.store.LoadOutputs(ctx, projectID, roundID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.store.LoadConfig(ctx, projectID, roundID)
	if err != nil {
		return nil, err
	}

	filters := s.baseFilters()
	switch {
	case f != nil:
		filters = *f
	case cfg.Filters != nil:
		filters = *cfg.Filters
	}

	view := &ResultsView{
		Status:  "success",
		Meta:    ResultsMeta{Filters: filters},
		Results: cohort.BuildResults(out.Rows, out.Trend, filters),
	}
	switch {
	case out.Summary != nil && !out.Summary.Reference.IsZero():
		ref := out.Summary.Reference.Format("2006-01-02")
		view.Meta.RefDate = &ref
	case cfg.Analysis != nil && cfg.Analysis.Reference != "":
		ref := cfg.Analysis.Reference
		view.Meta.RefDate = &ref
	}
	return view, nil
}

// FilterOptions lists the cohort labels and groups of the last run.
func (s *AnalysisService) FilterOptions(ctx context.Context, projectID, roundID string) (cohort.Options, error) {
	out, err := s.store.LoadOutputs(ctx, projectID, roundID)
	if err != nil {
		return cohort.Options{}, err
	}
	return cohort.FilterOptions(out.Rows), nil
}

// CostDrivers ranks cost by group, procedure and beneficiary over the
// filtered events of the last run. A nil filter uses DefaultFilters.
func (s *AnalysisService) CostDrivers(ctx context.Context, projectID, roundID string, f *cohort.Filters) (cohort.DriverBreakdown, error) {
	out, err := s.store.LoadOutputs(ctx, projectID, roundID)
	if err != nil {
		return cohort.DriverBreakdown{}, err
	}
	filters := s.baseFilters()
	if f != nil {
		filters = *f
	} else if saved, err := s.DefaultFilters(ctx, projectID, roundID); err == nil {
		filters = saved
	}
	return cohort.CostDrivers(cohort.FilterEvents(out.Rows, filters)), nil
}

// ConsolidatedWorkbook renders the consolidated rows of the last run as an
// XLSX workbook.
func (s *AnalysisService) ConsolidatedWorkbook(ctx context.Context, projectID, roundID string) ([]byte, error) {
	out, err := s.store.LoadOutputs(ctx, projectID, roundID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tabular.WriteXLSX(&buf, tabular.SheetConsolidated, cohort.ConsolidatedTable(out.Rows), tabular.XLSXOptions{
		NumericColumns: ConsolidatedNumericColumns,
	}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ConsolidatedNumericColumns are written as numbers in exported workbooks.
var ConsolidatedNumericColumns = []string{
	cohort.ConceptCost, cohort.ConceptQuantity, cohort.ColumnTenure, cohort.ConceptAge, "momento_mes",
}

// ParseReference reads the as-of date of a run. Besides the formats of
// cohort.ParseDate a bare "2006-01" month is accepted.
func ParseReference(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: missing", ErrInvalidReference)
	}
	if t, ok := cohort.ParseDate(s); ok {
		return t, nil
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
}

// tenureMapping drops the identifier and blank choices; tenure needs the
// dates only and keeps the raw identifier column.
func tenureMapping(m cohort.ColumnMapping) cohort.ColumnMapping {
	out := make(cohort.ColumnMapping, len(m))
	for concept, choice := range m {
		if concept == cohort.ConceptIdentifier || strings.TrimSpace(string(choice)) == "" {
			continue
		}
		out[concept] = choice
	}
	return out
}

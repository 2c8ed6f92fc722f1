package cohort

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"carecohort/pkg/contracts/domain"
)

// Input is everything one analysis run reads.
type Input struct {
	Roster        domain.Table
	Events        domain.Table
	RosterMapping ColumnMapping
	EventMapping  ColumnMapping
	// Reference is the as-of date; only its month matters. Zero means now.
	Reference time.Time
}

// AnalyzerConfig tunes a run.
type AnalyzerConfig struct {
	ZThreshold       float64
	RequireUniqueIDs bool
}

// DefaultAnalyzerConfig returns the defaults used by the service.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{ZThreshold: DefaultZThreshold}
}

// Analyzer runs the cohort pipeline.
type Analyzer struct {
	cfg    AnalyzerConfig
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer. A nil logger falls back to slog.Default.
func NewAnalyzer(cfg AnalyzerConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{cfg: cfg, logger: logger.With(slog.String("component", "cohort_analyzer"))}
}

// Run executes the pipeline with the default configuration.
func Run(ctx context.Context, in Input) (*Result, error) {
	return NewAnalyzer(DefaultAnalyzerConfig(), nil).Run(ctx, in)
}

// Run maps, joins, enriches and summarizes the input tables.
func (a *Analyzer) Run(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	ref := in.Reference
	if ref.IsZero() {
		ref = time.Now()
	}
	ref = ReferenceMonth(ref)

	roster := ApplyMapping(in.Roster, in.RosterMapping)
	events := ApplyMapping(in.Events, in.EventMapping)
	if err := checkPreconditions(roster, events); err != nil {
		a.logger.WarnContext(ctx, "analysis preconditions not met", slog.String("error", err.Error()))
		return nil, err
	}

	a.logger.InfoContext(ctx, "starting cohort analysis",
		slog.Int("roster_rows", roster.Len()),
		slog.Int("event_rows", events.Len()),
		slog.String("reference", ref.Format("2006-01-02")),
	)

	members := BuildMembers(BeneficiariesFromTable(roster), ref)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := Consolidate(members, EventsFromTable(events), ConsolidateOptions{RequireUniqueIDs: a.cfg.RequireUniqueIDs})
	if err != nil {
		return nil, fmt.Errorf("consolidate: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hasAge := events.HasColumn(ConceptAge) || roster.HasColumn(ConceptAge)
	Enrich(rows, ref, hasAge)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Rows:     rows,
		Trend:    LinearTrend(rows),
		Outliers: DetectOutliers(rows, a.cfg.ZThreshold),
	}
	res.Summary = summarize(members, rows, ref)
	res.Summary.Outliers = len(res.Outliers)

	a.logger.InfoContext(ctx, "cohort analysis completed",
		slog.Int("consolidated_rows", len(rows)),
		slog.Int("unmatched_events", res.Summary.UnmatchedEvents),
		slog.Int("eligible_members", res.Summary.EligibleMembers),
		slog.Int("outliers", len(res.Outliers)),
		slog.Bool("trend", res.Trend != nil),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func checkPreconditions(roster, events domain.Table) error {
	switch {
	case len(roster.Columns) == 0 || roster.Len() == 0:
		return &PreconditionError{Precondition: "roster table", Detail: "no rows"}
	case len(events.Columns) == 0 || events.Len() == 0:
		return &PreconditionError{Precondition: "event table", Detail: "no rows"}
	case !roster.HasColumn(ConceptIdentifier):
		return &PreconditionError{Precondition: "roster identifier", Detail: "not mapped to an existing column"}
	case !roster.HasColumn(ConceptInclusionDate):
		return &PreconditionError{Precondition: "roster inclusion date", Detail: "not mapped to an existing column"}
	case !events.HasColumn(ConceptIdentifier):
		return &PreconditionError{Precondition: "event identifier", Detail: "not mapped to an existing column"}
	case !events.HasColumn(ConceptServiceDate):
		return &PreconditionError{Precondition: "event service date", Detail: "not mapped to an existing column"}
	}
	return nil
}

func summarize(members []Member, rows []Row, ref time.Time) Summary {
	s := Summary{
		Reference:        ref,
		RosterRows:       len(members),
		EventRows:        len(rows),
		ConsolidatedRows: len(rows),
		StatusCounts:     make(map[string]int),
	}
	eligible := make(map[string]struct{})
	for _, m := range members {
		s.StatusCounts[m.Tenure.Status]++
		if m.Tenure.Eligible() && m.ID != "" {
			eligible[m.ID] = struct{}{}
		}
	}
	s.EligibleMembers = len(eligible)

	lives := make(map[string]struct{})
	for _, r := range rows {
		if !r.Matched {
			s.UnmatchedEvents++
		}
		if r.ID != "" {
			lives[r.ID] = struct{}{}
		}
	}
	s.DistinctLives = len(lives)
	return s
}

// Tenure preview columns appended to the roster.
const (
	ColumnTenure       = "tempo_programa"
	ColumnTenureStatus = "tempo_programa_status"
	ColumnCohort       = "grupos"
)

// PreviewTenure maps the roster and appends tenure, status and cohort
// columns. limit caps the number of rows; limit <= 0 keeps all of them.
func PreviewTenure(roster domain.Table, mapping ColumnMapping, ref time.Time, limit int) (domain.Table, error) {
	mapped := ApplyMapping(roster, mapping)
	if !mapped.HasColumn(ConceptInclusionDate) {
		return domain.Table{}, &PreconditionError{Precondition: "roster inclusion date", Detail: "not mapped to an existing column"}
	}
	if ref.IsZero() {
		ref = time.Now()
	}
	ref = ReferenceMonth(ref)
	if limit > 0 {
		mapped = mapped.Head(limit)
	}

	out := domain.NewTable(append(append([]string(nil), mapped.Columns...), ColumnTenure, ColumnTenureStatus, ColumnCohort)...)
	incIdx := mapped.ColumnIndex(ConceptInclusionDate)
	deaIdx := mapped.ColumnIndex(ConceptDeactivationDate)
	for i, r := range mapped.Rows {
		t := ComputeTenure(mapped.Cell(i, incIdx), mapped.Cell(i, deaIdx), ref)
		months := ""
		if t.Months != nil {
			months = strconv.Itoa(*t.Months)
		}
		cells := make([]string, len(mapped.Columns), len(out.Columns))
		copy(cells, r)
		out.AppendRow(append(cells, months, t.Status, t.Cohort)...)
	}
	return out, nil
}

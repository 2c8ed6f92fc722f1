package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"carecohort/internal/cohort"
	apperrors "carecohort/internal/errors"
)

// Output artifact names.
const (
	ArtifactConsolidated = "consolidated"
	ArtifactOutliers     = "outliers"
	trendFile            = "trend.json"
	summaryFile          = "summary.json"
)

// Outputs are the persisted results of one analysis run.
type Outputs struct {
	Rows     []cohort.Row     `json:"rows"`
	Outliers []cohort.Outlier `json:"outliers"`
	Trend    *cohort.Trend    `json:"trend"`
	Summary  *cohort.Summary  `json:"summary,omitempty"`
}

// SaveOutputs writes the run results, then marks the project processed
// with the number of distinct identifiers in the consolidated rows.
func (s *Store) SaveOutputs(ctx context.Context, projectID, roundID string, out Outputs) (WriteReport, error) {
	if _, err := s.catalog.GetRound(ctx, projectID, roundID); err != nil {
		return nil, err
	}
	dir := s.RoundPaths(projectID, roundID).Outputs

	rows := out.Rows
	if rows == nil {
		rows = []cohort.Row{}
	}
	outliers := out.Outliers
	if outliers == nil {
		outliers = []cohort.Outlier{}
	}

	report := WriteReport{
		s.writeSnapshot(ctx, ArtifactConsolidated, dir, rows),
		s.writeSnapshot(ctx, ArtifactOutliers, dir, outliers),
		// A nil trend is written as null so an older trend never survives.
		s.writeJSON(ctx, "trend", filepath.Join(dir, trendFile), out.Trend),
	}
	if out.Summary != nil {
		report = append(report, s.writeJSON(ctx, "summary", filepath.Join(dir, summaryFile), out.Summary))
	}
	if err := report.Err(); err != nil {
		return report, err
	}

	lives := distinctIDs(rows)
	if err := s.catalog.touch(ctx, projectID, roundID); err != nil {
		return report, err
	}
	if err := s.catalog.MarkProcessed(ctx, projectID, lives); err != nil {
		return report, err
	}

	s.logger.InfoContext(ctx, "round outputs saved",
		slog.String("project_id", projectID),
		slog.String("round_id", roundID),
		slog.Int("rows", len(rows)),
		slog.Int("lives", lives),
		slog.Int("fallback_writes", report.Fallbacks()))
	return report, nil
}

// LoadOutputs reads the results of the last run. Without a consolidated
// snapshot the error wraps ErrAnalysisNotRun.
func (s *Store) LoadOutputs(ctx context.Context, projectID, roundID string) (*Outputs, error) {
	if _, err := s.catalog.GetRound(ctx, projectID, roundID); err != nil {
		return nil, err
	}
	dir := s.RoundPaths(projectID, roundID).Outputs

	var out Outputs
	if err := readSnapshot(dir, ArtifactConsolidated, &out.Rows); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", apperrors.ErrAnalysisNotRun, projectID, roundID)
		}
		return nil, apperrors.NewStorageError("failed to read consolidated rows", err)
	}
	if err := readSnapshot(dir, ArtifactOutliers, &out.Outliers); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, apperrors.NewStorageError("failed to read outliers", err)
	}
	if _, err := s.readJSON(ctx, filepath.Join(dir, trendFile), &out.Trend); err != nil {
		return nil, apperrors.NewStorageError("failed to read trend", err)
	}
	var summary cohort.Summary
	if ok, err := s.readJSON(ctx, filepath.Join(dir, summaryFile), &summary); err != nil {
		return nil, apperrors.NewStorageError("failed to read summary", err)
	} else if ok {
		out.Summary = &summary
	}
	return &out, nil
}

func distinctIDs(rows []cohort.Row) int {
	seen := make(map[string]struct{})
	for _, r := range rows {
		if r.ID != "" {
			seen[r.ID] = struct{}{}
		}
	}
	return len(seen)
}

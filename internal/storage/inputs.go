package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	apperrors "carecohort/internal/errors"
	"carecohort/pkg/contracts/domain"
)

// Input artifact names.
const (
	ArtifactRoster = "beneficiarios"
	ArtifactEvents = "ficha"
	inputsMetaFile = "inputs_hash.json"
)

// FileMeta describes one stored input table.
type FileMeta struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Rows   int    `json:"rows"`
	Cols   int    `json:"cols"`
}

// InputsMeta is the content of inputs_hash.json.
type InputsMeta struct {
	SavedAt time.Time `json:"saved_at"`
	Roster  FileMeta  `json:"beneficiarios"`
	Events  FileMeta  `json:"ficha"`
}

// SaveInputs stores both raw tables of a round and records their hashes
// and shapes. The round must exist.
func (s *Store) SaveInputs(ctx context.Context, projectID, roundID string, roster, events domain.Table) (*InputsMeta, WriteReport, error) {
	if _, err := s.catalog.GetRound(ctx, projectID, roundID); err != nil {
		return nil, nil, err
	}
	paths := s.RoundPaths(projectID, roundID)

	rosterRes := s.writeSnapshot(ctx, ArtifactRoster, paths.Inputs, roster)
	eventsRes := s.writeSnapshot(ctx, ArtifactEvents, paths.Inputs, events)
	report := WriteReport{rosterRes, eventsRes}
	if err := report.Err(); err != nil {
		return nil, report, err
	}

	meta := &InputsMeta{
		SavedAt: time.Now().UTC(),
		Roster:  FileMeta{Path: rosterRes.Path, SHA256: rosterRes.SHA256, Rows: roster.Len(), Cols: len(roster.Columns)},
		Events:  FileMeta{Path: eventsRes.Path, SHA256: eventsRes.SHA256, Rows: events.Len(), Cols: len(events.Columns)},
	}
	report = append(report, s.writeJSON(ctx, "inputs_hash", filepath.Join(paths.Inputs, inputsMetaFile), meta))
	if err := report.Err(); err != nil {
		return meta, report, err
	}

	if err := s.catalog.touch(ctx, projectID, roundID); err != nil {
		return meta, report, err
	}
	s.logger.InfoContext(ctx, "round inputs saved",
		slog.String("project_id", projectID),
		slog.String("round_id", roundID),
		slog.Int("roster_rows", meta.Roster.Rows),
		slog.Int("event_rows", meta.Events.Rows))
	return meta, report, nil
}

// LoadInputs reads both raw tables of a round. Either table missing yields
// an error wrapping ErrInputsNotFound.
func (s *Store) LoadInputs(ctx context.Context, projectID, roundID string) (roster, events domain.Table, err error) {
	if _, err := s.catalog.GetRound(ctx, projectID, roundID); err != nil {
		return domain.Table{}, domain.Table{}, err
	}
	paths := s.RoundPaths(projectID, roundID)

	if err := readSnapshot(paths.Inputs, ArtifactRoster, &roster); err != nil {
		return domain.Table{}, domain.Table{}, inputsError(ArtifactRoster, err)
	}
	if err := readSnapshot(paths.Inputs, ArtifactEvents, &events); err != nil {
		return domain.Table{}, domain.Table{}, inputsError(ArtifactEvents, err)
	}
	return roster, events, nil
}

// LoadRoster reads only the beneficiary table of a round.
func (s *Store) LoadRoster(ctx context.Context, projectID, roundID string) (domain.Table, error) {
	if _, err := s.catalog.GetRound(ctx, projectID, roundID); err != nil {
		return domain.Table{}, err
	}
	var roster domain.Table
	if err := readSnapshot(s.RoundPaths(projectID, roundID).Inputs, ArtifactRoster, &roster); err != nil {
		return domain.Table{}, inputsError(ArtifactRoster, err)
	}
	return roster, nil
}

// LoadInputsMeta reads inputs_hash.json.
func (s *Store) LoadInputsMeta(ctx context.Context, projectID, roundID string) (*InputsMeta, error) {
	var meta InputsMeta
	ok, err := s.readJSON(ctx, filepath.Join(s.RoundPaths(projectID, roundID).Inputs, inputsMetaFile), &meta)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read inputs metadata", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", apperrors.ErrInputsNotFound, projectID, roundID)
	}
	return &meta, nil
}

func inputsError(artifact string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", apperrors.ErrInputsNotFound, artifact)
	}
	return apperrors.NewStorageError(fmt.Sprintf("failed to read %s", artifact), err)
}

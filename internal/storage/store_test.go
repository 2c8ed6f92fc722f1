package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carecohort/internal/cohort"
	apperrors "carecohort/internal/errors"
	"carecohort/internal/shared/testutil"
)

func newTestStore(t *testing.T, compress bool) *Store {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	s, err := Open(Options{Root: t.TempDir(), Compress: compress, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestRound(t *testing.T, s *Store) (string, string) {
	t.Helper()
	ctx := context.Background()
	p, err := s.CreateProject(ctx, NewProject{Name: "Programa Bem Viver"})
	require.NoError(t, err)
	r, _, err := s.CreateRound(ctx, p.ID, NewRound{Name: "R1"})
	require.NoError(t, err)
	return p.ID, r.ID
}

func TestOpenRequiresRoot(t *testing.T) {
	_, err := Open(Options{})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeConfig, appErr.Type)
}

func TestInputsRoundTrip(t *testing.T) {
	for _, compress := range []bool{true, false} {
		t.Run(map[bool]string{true: "snappy", false: "plain"}[compress], func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t, compress)
			projectID, roundID := newTestRound(t, s)

			roster, events := testutil.SampleRoster(), testutil.SampleEvents()
			meta, report, err := s.SaveInputs(ctx, projectID, roundID, roster, events)
			require.NoError(t, err)
			require.Len(t, report, 3)
			for _, res := range report {
				assert.Equal(t, OutcomeWritten, res.Outcome, res.Artifact)
			}

			assert.Equal(t, 3, meta.Roster.Rows)
			assert.Equal(t, 5, meta.Roster.Cols)
			assert.Equal(t, 5, meta.Events.Rows)
			assert.Equal(t, 7, meta.Events.Cols)

			data, err := os.ReadFile(meta.Roster.Path)
			require.NoError(t, err)
			sum := sha256.Sum256(data)
			assert.Equal(t, hex.EncodeToString(sum[:]), meta.Roster.SHA256)

			gotRoster, gotEvents, err := s.LoadInputs(ctx, projectID, roundID)
			require.NoError(t, err)
			assert.Equal(t, roster, gotRoster)
			assert.Equal(t, events, gotEvents)

			onlyRoster, err := s.LoadRoster(ctx, projectID, roundID)
			require.NoError(t, err)
			assert.Equal(t, roster, onlyRoster)

			savedMeta, err := s.LoadInputsMeta(ctx, projectID, roundID)
			require.NoError(t, err)
			assert.Equal(t, meta.Events.SHA256, savedMeta.Events.SHA256)
		})
	}
}

func TestSnapshotSurvivesCompressionChange(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	plain, err := Open(Options{Root: root, Compress: false})
	require.NoError(t, err)
	p, err := plain.CreateProject(ctx, NewProject{Name: "x"})
	require.NoError(t, err)
	_, _, err = plain.CreateRound(ctx, p.ID, NewRound{Name: "R1"})
	require.NoError(t, err)
	_, _, err = plain.SaveInputs(ctx, p.ID, "R1", testutil.SampleRoster(), testutil.SampleEvents())
	require.NoError(t, err)
	require.NoError(t, plain.Close())

	compressed, err := Open(Options{Root: root, Compress: true})
	require.NoError(t, err)
	defer compressed.Close()

	roster, _, err := compressed.LoadInputs(ctx, p.ID, "R1")
	require.NoError(t, err)
	assert.Equal(t, testutil.SampleRoster(), roster)

	_, _, err = compressed.SaveInputs(ctx, p.ID, "R1", testutil.SampleRoster(), testutil.SampleEvents())
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(compressed.RoundPaths(p.ID, "R1").Inputs, "beneficiarios.json"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestLoadInputsMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)
	projectID, roundID := newTestRound(t, s)

	_, _, err := s.LoadInputs(ctx, projectID, roundID)
	assert.True(t, errors.Is(err, apperrors.ErrInputsNotFound))

	_, _, err = s.LoadInputs(ctx, projectID, "R9")
	assert.True(t, errors.Is(err, apperrors.ErrRoundNotFound))

	_, err = s.LoadInputsMeta(ctx, projectID, roundID)
	assert.True(t, errors.Is(err, apperrors.ErrInputsNotFound))
}

func TestWriteFallback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)
	projectID, roundID := newTestRound(t, s)

	s.rename = func(string, string) error { return errors.New("rename not permitted") }

	report, err := s.SaveConfig(ctx, projectID, roundID, RoundConfig{
		Analysis: &AnalysisSettings{Reference: "2024-01-31"},
	})
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, OutcomeWrittenFallback, report[0].Outcome)
	assert.Error(t, report[0].Err)
	assert.Equal(t, 1, report.Fallbacks())

	cfg, err := s.LoadConfig(ctx, projectID, roundID)
	require.NoError(t, err)
	require.NotNil(t, cfg.Analysis)
	assert.Equal(t, "2024-01-31", cfg.Analysis.Reference)

	// No temporary files are left behind.
	entries, err := os.ReadDir(s.RoundPaths(projectID, roundID).Config)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteReportErr(t *testing.T) {
	report := WriteReport{
		{Artifact: "mapping", Outcome: OutcomeWritten},
		{Artifact: "filters", Outcome: OutcomeFailed, Err: errors.New("disk full")},
	}
	err := report.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filters")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeStorage, appErr.Type)

	assert.NoError(t, WriteReport{{Outcome: OutcomeWrittenFallback}}.Err())
}

func TestConfigRoundTripAndCopy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)
	projectID, roundID := newTestRound(t, s)

	filters := cohort.DefaultFilters()
	filters.CohortLabels = []string{"TP_03"}
	cfg := RoundConfig{
		Mapping: &MappingConfig{
			Roster: cohort.ColumnMapping{cohort.ConceptIdentifier: "Matricula"},
			Events: cohort.ColumnMapping{cohort.ConceptIdentifier: "CPF"},
		},
		Analysis: &AnalysisSettings{Reference: "2024-01-31", ZThreshold: 2.5},
		Filters:  &filters,
	}
	_, err := s.SaveConfig(ctx, projectID, roundID, cfg)
	require.NoError(t, err)

	got, err := s.LoadConfig(ctx, projectID, roundID)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	copied, report, err := s.CreateRound(ctx, projectID, NewRound{Name: "R2", CopyFrom: roundID})
	require.NoError(t, err)
	assert.Len(t, report, 3)

	gotCopy, err := s.LoadConfig(ctx, projectID, copied.ID)
	require.NoError(t, err)
	assert.Equal(t, cfg, gotCopy)
}

func TestLoadConfigCorrupted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)
	projectID, roundID := newTestRound(t, s)

	path := filepath.Join(s.RoundPaths(projectID, roundID).Config, "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"benef_mapping": {`), 0o644))

	cfg, err := s.LoadConfig(ctx, projectID, roundID)
	require.NoError(t, err)
	assert.Nil(t, cfg.Mapping)

	_, err = os.Stat(path + ".corrupted")
	assert.NoError(t, err)
}

func TestOutputsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)
	projectID, roundID := newTestRound(t, s)

	_, err := s.LoadOutputs(ctx, projectID, roundID)
	assert.True(t, errors.Is(err, apperrors.ErrAnalysisNotRun))

	month := 1
	tenure := 5
	rows := []cohort.Row{
		{ID: "A1", Matched: true, Tenure: &tenure, TenureStatus: cohort.StatusOK, Cohort: "TP_05", RelativeMonth: &month, BeforeAfter: cohort.LabelAfter, Cost: 50, Quantity: 1},
		{ID: "A1", Matched: true, Tenure: &tenure, TenureStatus: cohort.StatusOK, Cohort: "TP_05", Cost: 100, Quantity: 2},
		{ID: "Z9", Cost: 10, Quantity: 1, Extra: map[string]string{"Prestador": "Clinica"}},
	}
	out := Outputs{
		Rows:     rows,
		Outliers: []cohort.Outlier{{ID: "A1", Cost: 150, ZScore: 3.2}},
		Trend:    &cohort.Trend{Slope: 1, Intercept: 2, Prediction: 5, X: []int{1, 2}, Y: []float64{3, 4}, TrendY: []float64{3, 4}},
		Summary:  &cohort.Summary{EventRows: 3, DistinctLives: 2},
	}
	report, err := s.SaveOutputs(ctx, projectID, roundID, out)
	require.NoError(t, err)
	assert.Len(t, report, 4)

	got, err := s.LoadOutputs(ctx, projectID, roundID)
	require.NoError(t, err)
	assert.Equal(t, out.Rows, got.Rows)
	assert.Equal(t, out.Outliers, got.Outliers)
	assert.Equal(t, out.Trend, got.Trend)
	assert.Equal(t, 2, got.Summary.DistinctLives)

	p, err := s.Catalog().GetProject(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, p.Status)
	assert.Equal(t, 2, p.Lives)

	// A rerun without a trend clears the old one.
	out.Trend = nil
	_, err = s.SaveOutputs(ctx, projectID, roundID, out)
	require.NoError(t, err)
	got, err = s.LoadOutputs(ctx, projectID, roundID)
	require.NoError(t, err)
	assert.Nil(t, got.Trend)
}

func TestDeleteProjectRemovesFiles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)
	projectID, roundID := newTestRound(t, s)
	_, _, err := s.SaveInputs(ctx, projectID, roundID, testutil.SampleRoster(), testutil.SampleEvents())
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, projectID))
	_, statErr := os.Stat(filepath.Join(s.Root(), "projects", projectID))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
	assert.True(t, errors.Is(s.DeleteProject(ctx, projectID), apperrors.ErrProjectNotFound))
}

func TestEnsureRoundCreatesDirectories(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)
	p, err := s.CreateProject(ctx, NewProject{Name: "Oncologia"})
	require.NoError(t, err)

	r, err := s.EnsureRound(ctx, p.ID, "R1")
	require.NoError(t, err)
	assert.Equal(t, "R1", r.ID)

	info, err := os.Stat(s.RoundPaths(p.ID, "R1").Outputs)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

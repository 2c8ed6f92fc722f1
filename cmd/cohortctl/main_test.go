package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carecohort/internal/cohort"
	"carecohort/internal/shared/testutil"
	"carecohort/pkg/contracts"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeInputs stores the sample tables as CSV files and returns their paths.
func writeInputs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	roster := filepath.Join(dir, "beneficiarios.csv")
	events := filepath.Join(dir, "ficha.csv")
	require.NoError(t, os.WriteFile(roster, testutil.CSV(testutil.SampleRoster()), 0o644))
	require.NoError(t, os.WriteFile(events, testutil.CSV(testutil.SampleEvents()), 0o644))
	return roster, events
}

func writeMapping(t *testing.T) string {
	t.Helper()
	m := mappingFile{
		Roster: cohort.ColumnMapping{
			cohort.ConceptIdentifier:       "Matricula",
			cohort.ConceptInclusionDate:    "Data Inclusao",
			cohort.ConceptDeactivationDate: "Data Exclusao",
			cohort.ConceptBirthDate:        "Data Nascimento",
			cohort.ConceptSex:              "Sexo",
		},
		Events: cohort.ColumnMapping{
			cohort.ConceptIdentifier:  "CPF",
			cohort.ConceptServiceDate: "Data Atendimento",
			cohort.ConceptCost:        "Valor Pago",
			cohort.ConceptQuantity:    "Quantidade",
			cohort.ConceptGroup:       "Grupo Despesa",
		},
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestSuggestCommand(t *testing.T) {
	roster, events := writeInputs(t)

	t.Run("suggestions", func(t *testing.T) {
		stdout, _, err := execute(t, "suggest", "--roster", roster, "--events", events)
		require.NoError(t, err)

		var out suggestOutput
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.Equal(t, testutil.SampleRoster().Columns, out.Roster.Columns)
		assert.Contains(t, out.Roster.Suggestions[cohort.ConceptIdentifier], "Matricula")
		assert.Contains(t, out.Events.Suggestions[cohort.ConceptServiceDate], "Data Atendimento")
	})

	t.Run("emit mapping", func(t *testing.T) {
		stdout, _, err := execute(t, "suggest", "--roster", roster, "--events", events, "--emit-mapping")
		require.NoError(t, err)
		assert.Contains(t, stdout, `"benef_mapping"`)
		assert.Contains(t, stdout, `"ficha_mapping"`)
	})

	t.Run("missing flag", func(t *testing.T) {
		_, _, err := execute(t, "suggest", "--roster", roster)
		assert.Error(t, err)
	})

	t.Run("unsupported file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "notes.txt")
		require.NoError(t, os.WriteFile(bad, []byte("x"), 0o644))
		_, _, err := execute(t, "suggest", "--roster", bad, "--events", events)
		assert.Error(t, err)
	})
}

func TestRunCommand(t *testing.T) {
	roster, events := writeInputs(t)
	mapping := writeMapping(t)
	out := filepath.Join(t.TempDir(), "saida")

	stdout, _, err := execute(t, "run",
		"--roster", roster,
		"--events", events,
		"--mapping", mapping,
		"--ref", "2024-06",
		"--out", out,
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "consolidated rows")

	for _, name := range []string{consolidatedFile, outliersFile, trendFile, summaryFile} {
		assert.FileExists(t, filepath.Join(out, name))
	}

	data, err := os.ReadFile(filepath.Join(out, summaryFile))
	require.NoError(t, err)
	var summary cohort.Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 3, summary.RosterRows)
	assert.Equal(t, 5, summary.EventRows)
	assert.Equal(t, 5, summary.ConsolidatedRows)
	assert.Equal(t, 1, summary.UnmatchedEvents)
	assert.Equal(t, 2024, summary.Reference.Year())
}

func TestRunCommandErrors(t *testing.T) {
	roster, events := writeInputs(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "bad reference", args: []string{"run", "--roster", roster, "--events", events, "--ref", "junho"}},
		{name: "missing mapping file", args: []string{"run", "--roster", roster, "--events", events, "--mapping", filepath.Join(t.TempDir(), "none.json")}},
		{name: "missing roster", args: []string{"run", "--roster", filepath.Join(t.TempDir(), "none.csv"), "--events", events}},
		{name: "required flags", args: []string{"run"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, append(tt.args, "--out", t.TempDir())...)
			assert.Error(t, err)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, contracts.Version)
}

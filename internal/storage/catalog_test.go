package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "carecohort/internal/errors"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := OpenCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func fixedClock(ts string) func() time.Time {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Programa Coração 2024", want: "Programa_Coração_2024"},
		{in: "  a -- b  ", want: "a_b"},
		{in: "???", want: "item"},
		{in: "", want: "item"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.in))
		})
	}

	long := Slug("abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij")
	assert.Len(t, []rune(long), 60)
}

func TestRoundID(t *testing.T) {
	now := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "R1", RoundID("R1", now))
	assert.Equal(t, "20240305_093000_Rodada_Marco", RoundID("Rodada Marco", now))
	assert.Equal(t, "20240305_093000_R_1", RoundID("R-1", now))
}

func TestCatalogProjects(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)
	c.now = fixedClock("2024-01-31T10:15:00Z")

	p, err := c.CreateProject(ctx, NewProject{Name: "Gestantes", Client: "Unimed Norte", Tags: []string{"materno"}})
	require.NoError(t, err)
	assert.Equal(t, "20240131_101500_Gestantes", p.ID)
	assert.Equal(t, StatusDraft, p.Status)

	// Same second, same name: the ID gets a suffix.
	dup, err := c.CreateProject(ctx, NewProject{Name: "Gestantes"})
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, dup.ID)
	assert.Contains(t, dup.ID, p.ID+"_")

	got, err := c.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Unimed Norte", got.Client)
	assert.Equal(t, []string{"materno"}, got.Tags)
	assert.Equal(t, p.CreatedAt, got.CreatedAt)

	list, err := c.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, c.MarkProcessed(ctx, p.ID, 42))
	got, err = c.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, got.Status)
	assert.Equal(t, 42, got.Lives)

	require.NoError(t, c.DeleteProject(ctx, p.ID))
	_, err = c.GetProject(ctx, p.ID)
	assert.True(t, errors.Is(err, apperrors.ErrProjectNotFound))
	assert.True(t, errors.Is(c.DeleteProject(ctx, p.ID), apperrors.ErrProjectNotFound))
}

func TestCatalogProjectNameRequired(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.CreateProject(context.Background(), NewProject{Name: "  "})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidProjectName))
}

func TestCatalogRounds(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	p, err := c.CreateProject(ctx, NewProject{Name: "Cardio"})
	require.NoError(t, err)

	_, err = c.CreateRound(ctx, "missing", NewRound{Name: "R1"})
	assert.True(t, errors.Is(err, apperrors.ErrProjectNotFound))

	r1, err := c.CreateRound(ctx, p.ID, NewRound{Name: "R1", Competence: "2024-01"})
	require.NoError(t, err)
	assert.Equal(t, "R1", r1.ID)

	_, err = c.CreateRound(ctx, p.ID, NewRound{Name: "R2", CopyFrom: "R9"})
	assert.True(t, errors.Is(err, apperrors.ErrRoundNotFound))

	r2, err := c.CreateRound(ctx, p.ID, NewRound{Name: "R2", CopyFrom: "R1"})
	require.NoError(t, err)
	assert.Equal(t, "R1", r2.CopiedFrom)

	// Recreating refreshes the metadata.
	again, err := c.CreateRound(ctx, p.ID, NewRound{Name: "R1", Notes: "revisada"})
	require.NoError(t, err)
	assert.Equal(t, "revisada", again.Notes)
	assert.Equal(t, r1.CreatedAt, again.CreatedAt)

	rounds, err := c.ListRounds(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, "R1", rounds[0].ID)
	assert.Equal(t, "R2", rounds[1].ID)

	ensured, created, err := c.EnsureRound(ctx, p.ID, "R3")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "R3", ensured.Name)

	_, created, err = c.EnsureRound(ctx, p.ID, "R3")
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = c.EnsureRound(ctx, "missing", "R1")
	assert.True(t, errors.Is(err, apperrors.ErrProjectNotFound))
}

func TestCatalogCurrent(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	cur, err := c.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Empty(t, cur.ProjectID)

	p, err := c.CreateProject(ctx, NewProject{Name: "Diabetes"})
	require.NoError(t, err)
	_, err = c.CreateRound(ctx, p.ID, NewRound{Name: "R1"})
	require.NoError(t, err)

	_, err = c.SetCurrent(ctx, p.ID, "R7")
	assert.True(t, errors.Is(err, apperrors.ErrRoundNotFound))

	_, err = c.SetCurrent(ctx, p.ID, "R1")
	require.NoError(t, err)
	cur, err = c.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.ID, cur.ProjectID)
	assert.Equal(t, "R1", cur.RoundID)

	require.NoError(t, c.DeleteProject(ctx, p.ID))
	cur, err = c.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Empty(t, cur.ProjectID)
}

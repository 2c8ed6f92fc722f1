package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carecohort/internal/storage"
)

func TestProjectServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	ts := newTestServices(t)

	list, err := ts.projects.ListProjects(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	p, err := ts.projects.CreateProject(ctx, storage.NewProject{Name: "Cardio", Tags: []string{"piloto"}})
	require.NoError(t, err)
	assert.Equal(t, storage.StatusDraft, p.Status)

	_, err = ts.projects.CreateRound(ctx, p.ID, storage.NewRound{Name: "R1"})
	require.NoError(t, err)
	r2, err := ts.projects.CreateRound(ctx, p.ID, storage.NewRound{Name: "R2", CopyFrom: "R1"})
	require.NoError(t, err)
	assert.Equal(t, "R1", r2.CopiedFrom)

	rounds, err := ts.projects.ListRounds(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, rounds, 2)

	cur, err := ts.projects.SelectCurrent(ctx, p.ID, "R2")
	require.NoError(t, err)
	assert.Equal(t, "R2", cur.RoundID)

	cur, err = ts.projects.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.ID, cur.ProjectID)

	require.NoError(t, ts.projects.DeleteProject(ctx, p.ID))
	_, err = ts.projects.GetProject(ctx, p.ID)
	assert.True(t, errors.Is(err, ErrProjectNotFound))
}

func TestProjectServiceErrors(t *testing.T) {
	ctx := context.Background()
	ts := newTestServices(t)

	_, err := ts.projects.CreateProject(ctx, storage.NewProject{Name: ""})
	assert.True(t, errors.Is(err, ErrInvalidProjectName))

	_, err = ts.projects.ListRounds(ctx, "missing")
	assert.True(t, errors.Is(err, ErrProjectNotFound))

	_, err = ts.projects.CreateRound(ctx, "missing", storage.NewRound{Name: "R1"})
	assert.True(t, errors.Is(err, ErrProjectNotFound))

	assert.True(t, errors.Is(ts.projects.DeleteProject(ctx, "missing"), ErrProjectNotFound))
}

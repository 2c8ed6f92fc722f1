package services

import (
	"context"
	"log/slog"

	"carecohort/internal/infrastructure"
	"carecohort/internal/storage"
)

// ProjectService manages projects, rounds and the current selection.
type ProjectService struct {
	store  *storage.Store
	logger *slog.Logger
}

// ProjectDetail is a project with its rounds.
type ProjectDetail struct {
	storage.Project
	Rounds []storage.Round `json:"rounds"`
}

// NewProjectService creates a project service over the store.
func NewProjectService(store *storage.Store, logger *slog.Logger) *ProjectService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectService{
		store:  store,
		logger: infrastructure.WithComponent(logger, "project_service"),
	}
}

// ListProjects returns every project, newest first.
func (s *ProjectService) ListProjects(ctx context.Context) ([]storage.Project, error) {
	projects, err := s.store.Catalog().ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []storage.Project{}
	}
	return projects, nil
}

// CreateProject registers a new project.
func (s *ProjectService) CreateProject(ctx context.Context, in storage.NewProject) (*storage.Project, error) {
	return s.store.CreateProject(ctx, in)
}

// GetProject returns a project and its rounds.
func (s *ProjectService) GetProject(ctx context.Context, projectID string) (*ProjectDetail, error) {
	p, err := s.store.Catalog().GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	rounds, err := s.store.Catalog().ListRounds(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if rounds == nil {
		rounds = []storage.Round{}
	}
	return &ProjectDetail{Project: *p, Rounds: rounds}, nil
}

// DeleteProject removes a project with all its rounds and files.
func (s *ProjectService) DeleteProject(ctx context.Context, projectID string) error {
	return s.store.DeleteProject(ctx, projectID)
}

// ListRounds returns the rounds of a project.
func (s *ProjectService) ListRounds(ctx context.Context, projectID string) ([]storage.Round, error) {
	if _, err := s.store.Catalog().GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	rounds, err := s.store.Catalog().ListRounds(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if rounds == nil {
		rounds = []storage.Round{}
	}
	return rounds, nil
}

// CreateRound creates a round, copying the configuration of in.CopyFrom
// when set.
func (s *ProjectService) CreateRound(ctx context.Context, projectID string, in storage.NewRound) (*storage.Round, error) {
	r, report, err := s.store.CreateRound(ctx, projectID, in)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "round created",
		slog.String("project_id", projectID),
		slog.String("round_id", r.ID),
		slog.String("copied_from", in.CopyFrom),
		slog.Int("copied_files", len(report)),
		slog.Int("fallback_writes", report.Fallbacks()))
	return r, nil
}

// Current returns the last selected project and round. Both are empty
// when nothing was selected yet.
func (s *ProjectService) Current(ctx context.Context) (storage.Current, error) {
	return s.store.Catalog().GetCurrent(ctx)
}

// SelectCurrent records the project and round the user is working on.
func (s *ProjectService) SelectCurrent(ctx context.Context, projectID, roundID string) (storage.Current, error) {
	return s.store.Catalog().SetCurrent(ctx, projectID, roundID)
}

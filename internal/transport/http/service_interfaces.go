package http

import (
	"context"

	"carecohort/internal/cohort"
	"carecohort/internal/services"
	"carecohort/internal/storage"
)

// ProjectServiceInterface is the part of services.ProjectService the
// handlers use.
type ProjectServiceInterface interface {
	ListProjects(ctx context.Context) ([]storage.Project, error)
	CreateProject(ctx context.Context, in storage.NewProject) (*storage.Project, error)
	GetProject(ctx context.Context, projectID string) (*services.ProjectDetail, error)
	DeleteProject(ctx context.Context, projectID string) error
	ListRounds(ctx context.Context, projectID string) ([]storage.Round, error)
	CreateRound(ctx context.Context, projectID string, in storage.NewRound) (*storage.Round, error)
	Current(ctx context.Context) (storage.Current, error)
	SelectCurrent(ctx context.Context, projectID, roundID string) (storage.Current, error)
}

// AnalysisServiceInterface is the part of services.AnalysisService the
// handlers use.
type AnalysisServiceInterface interface {
	Upload(ctx context.Context, projectID, roundID string, roster, events services.UploadFile) (*services.UploadSummary, error)
	Suggestions(ctx context.Context, projectID, roundID string) (*services.MappingSuggestions, error)
	PreviewTenure(ctx context.Context, projectID, roundID string, req services.TenureRequest) (*services.TenurePreview, error)
	TenureWorkbook(ctx context.Context, projectID, roundID string, req services.TenureRequest) ([]byte, error)
	Run(ctx context.Context, projectID, roundID string, req services.RunRequest) (*services.RunSummary, error)
	DefaultFilters(ctx context.Context, projectID, roundID string) (cohort.Filters, error)
	SaveFilters(ctx context.Context, projectID, roundID string, f cohort.Filters) error
	Results(ctx context.Context, projectID, roundID string, f *cohort.Filters) (*services.ResultsView, error)
	FilterOptions(ctx context.Context, projectID, roundID string) (cohort.Options, error)
	CostDrivers(ctx context.Context, projectID, roundID string, f *cohort.Filters) (cohort.DriverBreakdown, error)
	ConsolidatedWorkbook(ctx context.Context, projectID, roundID string) ([]byte, error)
}

var (
	_ ProjectServiceInterface  = (*services.ProjectService)(nil)
	_ AnalysisServiceInterface = (*services.AnalysisService)(nil)
)

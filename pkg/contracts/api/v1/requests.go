// Package api contains the request and response contracts of the carecohort
// HTTP API. Version v1 is the current stable API version.
package api

import "carecohort/internal/cohort"

// Project API Requests

// CreateProjectRequest creates a project.
type CreateProjectRequest struct {
	Name        string   `json:"name" validate:"required,max=120,safename"`
	Client      string   `json:"unimed" validate:"max=120"`
	Description string   `json:"description" validate:"max=2000"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=40"`
}

// CreateRoundRequest creates a round, optionally copying the configuration
// of another round of the same project.
type CreateRoundRequest struct {
	Name       string `json:"name" validate:"required,max=120,safename"`
	Competence string `json:"competencia" validate:"max=20"`
	Notes      string `json:"notes" validate:"max=2000"`
	CopyFrom   string `json:"copy_from" validate:"omitempty,max=200,safename"`
}

// SelectCurrentRequest points the UI at a project and round.
type SelectCurrentRequest struct {
	ProjectID string `json:"project_id" validate:"required,safename"`
	RoundID   string `json:"round_id" validate:"required,safename"`
}

// Analysis API Requests

// Mapping assigns raw columns to concepts for both tables. Each value may be
// a column name or a list whose first element is used.
type Mapping struct {
	Roster cohort.ColumnMapping `json:"benef_mapping" validate:"required"`
	Events cohort.ColumnMapping `json:"ficha_mapping"`
}

// TenurePreviewRequest drives the tenure preview and its XLSX download.
// Only the roster mapping is read.
type TenurePreviewRequest struct {
	Mapping   Mapping `json:"mapping"`
	Reference string  `json:"ultima_comp_ref" validate:"required,refdate"`
}

// RunAnalysisRequest runs the pipeline for a round.
type RunAnalysisRequest struct {
	Mapping          Mapping  `json:"mapping"`
	Reference        string   `json:"ultima_comp_ref" validate:"required,refdate"`
	ZThreshold       *float64 `json:"z_threshold,omitempty" validate:"omitempty,gte=0,lte=10"`
	RequireUniqueIDs bool     `json:"require_unique_ids"`
}

// FiltersRequest saves the dashboard filters of a round. Window defaults to
// the configured cap when omitted.
type FiltersRequest struct {
	Period           string   `json:"periodo" validate:"omitempty,oneof=dentro fora ambos"`
	IncludeZeroMonth bool     `json:"momento_zero"`
	Window           *int     `json:"janela" validate:"omitempty,gte=0,lte=240"`
	Cohorts          []string `json:"grupos" validate:"max=100"`
	Groups           []string `json:"agrupamento_assistencial" validate:"max=500"`
}

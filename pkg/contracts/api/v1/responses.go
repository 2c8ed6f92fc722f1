package api

import "carecohort/internal/cohort"

// StatusResponse acknowledges an operation on a resource.
type StatusResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

// FilterOptionsResponse lists the values available to the dashboard
// filters.
type FilterOptionsResponse struct {
	Status  string         `json:"status"`
	Options cohort.Options `json:"options"`
}

// CostDriversResponse ranks cost by group, procedure and beneficiary.
type CostDriversResponse struct {
	Status  string                 `json:"status"`
	Filters cohort.Filters         `json:"filters"`
	Drivers cohort.DriverBreakdown `json:"drivers"`
}

package storage

import (
	"context"
	"path/filepath"

	"carecohort/internal/cohort"
)

const (
	mappingFile  = "mapping.json"
	analysisFile = "analysis_config.json"
	filtersFile  = "filters.json"
)

var configFiles = []string{mappingFile, analysisFile, filtersFile}

// MappingConfig is the column mapping of both tables of a round.
type MappingConfig struct {
	Roster cohort.ColumnMapping `json:"benef_mapping"`
	Events cohort.ColumnMapping `json:"ficha_mapping"`
}

// AnalysisSettings are the run parameters saved with a round.
type AnalysisSettings struct {
	// Reference is the as-of date as sent by the user.
	Reference        string  `json:"ultima_comp_ref"`
	ZThreshold       float64 `json:"z_threshold"`
	RequireUniqueIDs bool    `json:"require_unique_ids,omitempty"`
}

// RoundConfig groups the saved configuration of a round. Nil members are
// absent.
type RoundConfig struct {
	Mapping  *MappingConfig    `json:"mapping"`
	Analysis *AnalysisSettings `json:"analysis_config"`
	Filters  *cohort.Filters   `json:"filters"`
}

// SaveConfig writes the non-nil members of cfg.
func (s *Store) SaveConfig(ctx context.Context, projectID, roundID string, cfg RoundConfig) (WriteReport, error) {
	if _, err := s.catalog.GetRound(ctx, projectID, roundID); err != nil {
		return nil, err
	}
	dir := s.RoundPaths(projectID, roundID).Config

	var report WriteReport
	if cfg.Mapping != nil {
		report = append(report, s.writeJSON(ctx, "mapping", filepath.Join(dir, mappingFile), cfg.Mapping))
	}
	if cfg.Analysis != nil {
		report = append(report, s.writeJSON(ctx, "analysis_config", filepath.Join(dir, analysisFile), cfg.Analysis))
	}
	if cfg.Filters != nil {
		report = append(report, s.writeJSON(ctx, "filters", filepath.Join(dir, filtersFile), cfg.Filters))
	}
	return report, report.Err()
}

// LoadConfig reads the saved configuration. Missing or corrupted files
// leave the member nil.
func (s *Store) LoadConfig(ctx context.Context, projectID, roundID string) (RoundConfig, error) {
	if _, err := s.catalog.GetRound(ctx, projectID, roundID); err != nil {
		return RoundConfig{}, err
	}
	dir := s.RoundPaths(projectID, roundID).Config

	var cfg RoundConfig
	var mapping MappingConfig
	if ok, err := s.readJSON(ctx, filepath.Join(dir, mappingFile), &mapping); err != nil {
		return RoundConfig{}, err
	} else if ok {
		cfg.Mapping = &mapping
	}

	var analysis AnalysisSettings
	if ok, err := s.readJSON(ctx, filepath.Join(dir, analysisFile), &analysis); err != nil {
		return RoundConfig{}, err
	} else if ok {
		cfg.Analysis = &analysis
	}

	var filters cohort.Filters
	if ok, err := s.readJSON(ctx, filepath.Join(dir, filtersFile), &filters); err != nil {
		return RoundConfig{}, err
	} else if ok {
		cfg.Filters = &filters
	}
	return cfg, nil
}

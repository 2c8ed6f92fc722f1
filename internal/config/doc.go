// Package config provides centralized configuration management for carecohort.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources, later ones winning:
//
//  1. Default values (Default)
//  2. A YAML file: $CARECOHORT_CONFIG, or config.yaml / configs/config.yaml
//  3. Environment variables
//
// # Environment Variables
//
// Variables follow the section structure under the CARECOHORT prefix:
//
//	CARECOHORT_SERVER_PORT=8000
//	CARECOHORT_STORAGE_ROOT=/var/lib/carecohort
//	CARECOHORT_LOGGING_LEVEL=debug
//	CARECOHORT_ANALYSIS_Z_THRESHOLD=2.5
//	CARECOHORT_ANALYSIS_REQUIRE_UNIQUE_IDS=true
//
// # Paths
//
// ResolvePaths turns the configured storage root and log file into absolute
// paths and EnsureDirectories creates them.
package config

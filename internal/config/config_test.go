package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad tests the Load function with various scenarios
func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "default configuration with no env vars",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultPort, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, int64(DefaultMaxUploadBytes), cfg.Server.MaxUploadBytes)
				assert.True(t, cfg.Security.EnableCORS)
				assert.True(t, cfg.Security.RateLimit.Enabled)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, "console", cfg.Logging.Output)
				assert.Equal(t, DefaultStorageRoot, cfg.Storage.Root)
				assert.True(t, cfg.Storage.CompressSnaps)
				assert.Equal(t, 24, cfg.Analysis.WindowCapMonths)
				assert.Equal(t, 3.0, cfg.Analysis.ZThreshold)
				assert.Equal(t, 5, cfg.Analysis.SuggestionLimit)
				assert.Equal(t, 50, cfg.Analysis.PreviewRows)
				assert.False(t, cfg.Analysis.RequireUniqueIDs)
			},
		},
		{
			name: "custom environment variables",
			env: map[string]string{
				"CARECOHORT_SERVER_PORT":                 "9090",
				"CARECOHORT_SERVER_READ_TIMEOUT":         "45s",
				"CARECOHORT_SECURITY_ALLOWED_ORIGINS":    "http://example.com,https://example.com",
				"CARECOHORT_LOGGING_LEVEL":               "debug",
				"CARECOHORT_LOGGING_FORMAT":              "text",
				"CARECOHORT_STORAGE_ROOT":                "/srv/cohort",
				"CARECOHORT_ANALYSIS_Z_THRESHOLD":        "2.5",
				"CARECOHORT_ANALYSIS_REQUIRE_UNIQUE_IDS": "true",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, []string{"http://example.com", "https://example.com"}, cfg.Security.AllowedOrigins)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format) // validate() forces json
				assert.Equal(t, "/srv/cohort", cfg.Storage.Root)
				assert.Equal(t, 2.5, cfg.Analysis.ZThreshold)
				assert.True(t, cfg.Analysis.RequireUniqueIDs)
			},
		},
		{
			name: "yaml file overlays defaults",
			file: `
server:
  port: 7000
storage:
  root: /tmp/cohort-data
analysis:
  window_cap_months: 12
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7000, cfg.Server.Port)
				assert.Equal(t, "/tmp/cohort-data", cfg.Storage.Root)
				assert.Equal(t, 12, cfg.Analysis.WindowCapMonths)
				assert.Equal(t, 3.0, cfg.Analysis.ZThreshold, "keys absent from the file keep defaults")
			},
		},
		{
			name: "environment wins over file",
			env:  map[string]string{"CARECOHORT_SERVER_PORT": "7100"},
			file: "server:\n  port: 7000\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7100, cfg.Server.Port)
			},
		},
		{
			name:    "invalid port number",
			env:     map[string]string{"CARECOHORT_SERVER_PORT": "99999"},
			wantErr: true,
		},
		{
			name:    "malformed duration",
			env:     map[string]string{"CARECOHORT_SERVER_READ_TIMEOUT": "soon"},
			wantErr: true,
		},
		{
			name: "zero z threshold flags everyone above the mean",
			env:  map[string]string{"CARECOHORT_ANALYSIS_Z_THRESHOLD": "0"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 0.0, cfg.Analysis.ZThreshold)
			},
		},
		{
			name:    "negative z threshold",
			env:     map[string]string{"CARECOHORT_ANALYSIS_Z_THRESHOLD": "-1"},
			wantErr: true,
		},
		{
			name:    "unknown trace exporter",
			env:     map[string]string{"CARECOHORT_TELEMETRY_TRACE_EXPORTER": "jaeger"},
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "server: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
			if tt.file != "" {
				path := filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o600))
				t.Setenv(ConfigFileEnv, path)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestValidateNormalizesLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Output = "syslog"
	cfg.Logging.FilePath = ""
	cfg.Analysis.SuggestionLimit = 0

	require.NoError(t, cfg.validate())
	assert.Equal(t, "console", cfg.Logging.Output)
	assert.Equal(t, DefaultLogFile, cfg.Logging.FilePath)
	assert.Equal(t, DefaultSuggestionLimit, cfg.Analysis.SuggestionLimit)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"zero upload size", func(c *Config) { c.Server.MaxUploadBytes = 0 }},
		{"cors without origins", func(c *Config) { c.Security.AllowedOrigins = nil }},
		{"rate limit without burst", func(c *Config) { c.Security.RateLimit.Burst = 0 }},
		{"blank storage root", func(c *Config) { c.Storage.Root = "  " }},
		{"negative window", func(c *Config) { c.Analysis.WindowCapMonths = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "carecohort/internal/errors"
	"carecohort/internal/services"
	"carecohort/internal/shared/testutil"
	"carecohort/internal/storage"
)

func newHealthRouter(t *testing.T, store *storage.Store, prom http.Handler) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	hs := services.NewHealthService("1.0.0", "", store, logger)
	health := NewHealthHandler(hs, logger)
	metrics := NewMetricsHandler(prom, hs, logger, apierrors.NewErrorHandler(logger, false))

	r := chi.NewRouter()
	r.Mount("/api/health", health.Routes())
	r.Get("/api/version", health.Version)
	r.Mount("/api/metrics", metrics.Routes())
	return r
}

func TestHealthHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	store, err := storage.Open(storage.Options{Root: t.TempDir(), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	prom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# HELP carecohort_analysis_runs_total\n"))
	})

	tests := []struct {
		name           string
		store          *storage.Store
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{name: "health", store: store, path: "/api/health", expectedStatus: http.StatusOK, expectedBody: `"status":"ok"`},
		{name: "ready", store: store, path: "/api/health/ready", expectedStatus: http.StatusOK, expectedBody: `"status":"ready"`},
		{name: "not ready without store", store: nil, path: "/api/health/ready", expectedStatus: http.StatusServiceUnavailable, expectedBody: `"not_ready"`},
		{name: "live", store: nil, path: "/api/health/live", expectedStatus: http.StatusOK, expectedBody: `"alive"`},
		{name: "version", store: nil, path: "/api/version", expectedStatus: http.StatusOK, expectedBody: `"version":"1.0.0"`},
		{name: "metrics", store: store, path: "/api/metrics", expectedStatus: http.StatusOK, expectedBody: "carecohort_analysis_runs_total"},
		{name: "stats", store: store, path: "/api/metrics/stats", expectedStatus: http.StatusOK, expectedBody: `"projects":0`},
		{name: "stats without store", store: nil, path: "/api/metrics/stats", expectedStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newHealthRouter(t, tt.store, prom)
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedBody != "" {
				assert.Contains(t, w.Body.String(), tt.expectedBody)
			}
		})
	}
}

func TestMetricsDisabled(t *testing.T) {
	router := newHealthRouter(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, float64(http.StatusNotFound), problem["status"])
}

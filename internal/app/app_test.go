package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carecohort/internal/config"
	"carecohort/internal/services"
	"carecohort/internal/shared/testutil"
	"carecohort/pkg/contracts"
	"carecohort/pkg/contracts/events"
)

func newTestApplication(t *testing.T) *Application {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Root = filepath.Join(dir, "data")
	cfg.Logging.FilePath = filepath.Join(dir, "logs", "app.log")

	logger, _ := testutil.NewTestLogger(t)
	a, err := newApplication(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })
	return a
}

func serve(a *Application, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	return w
}

func TestNewApplication(t *testing.T) {
	a := newTestApplication(t)

	assert.NotNil(t, a.Router)
	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.Services.Projects)
	assert.NotNil(t, a.Services.Analysis)
	assert.NotNil(t, a.Services.Health)
	assert.NotNil(t, a.OTelProviders.PrometheusHTTP)
	assert.Equal(t, ":8000", a.Server.Addr)
	assert.DirExists(t, a.Paths.StorageRoot)
	assert.DirExists(t, a.Paths.LogsDir)
}

func TestApplicationRoutes(t *testing.T) {
	a := newTestApplication(t)

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{name: "health", method: http.MethodGet, path: "/api/health", expectedStatus: http.StatusOK, expectedBody: `"status":"ok"`},
		{name: "ready", method: http.MethodGet, path: "/api/health/ready", expectedStatus: http.StatusOK, expectedBody: `"ready"`},
		{name: "live", method: http.MethodGet, path: "/api/health/live", expectedStatus: http.StatusOK},
		{name: "version", method: http.MethodGet, path: "/api/version", expectedStatus: http.StatusOK, expectedBody: contracts.Version},
		{name: "projects", method: http.MethodGet, path: "/api/projects", expectedStatus: http.StatusOK, expectedBody: "[]"},
		{name: "stats", method: http.MethodGet, path: "/api/metrics/stats", expectedStatus: http.StatusOK, expectedBody: `"projects":0`},
		{name: "unknown route", method: http.MethodGet, path: "/api/unknown", expectedStatus: http.StatusNotFound, expectedBody: "/errors/not-found"},
		{name: "unknown project", method: http.MethodGet, path: "/api/projects/nope", expectedStatus: http.StatusNotFound},
		{name: "method not allowed", method: http.MethodPatch, path: "/api/projects", expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(a, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedBody != "" {
				assert.Contains(t, w.Body.String(), tt.expectedBody)
			}
		})
	}
}

func TestMiddlewareChain(t *testing.T) {
	a := newTestApplication(t)

	t.Run("request id is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("X-Request-ID", "req-123")
		w := serve(a, req)
		assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	})

	t.Run("request id is generated", func(t *testing.T) {
		w := serve(a, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("security headers", func(t *testing.T) {
		w := serve(a, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := serve(a, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "http://evil.example")
		w := serve(a, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("json content type", func(t *testing.T) {
		w := serve(a, httptest.NewRequest(http.MethodGet, "/api/projects", nil))
		assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	})
}

func TestProjectLifecycleThroughRouter(t *testing.T) {
	a := newTestApplication(t)

	body := bytes.NewBufferString(`{"name":"Programa Bem Viver","unimed":"Unimed Norte"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/projects", body)
	req.Header.Set("Content-Type", "application/json")
	w := serve(a, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID     string `json:"project_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	req = httptest.NewRequest(http.MethodPost, "/api/projects/"+created.ID+"/rounds",
		strings.NewReader(`{"name":"R1","competencia":"2024-01"}`))
	req.Header.Set("Content-Type", "application/json")
	w = serve(a, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	req = httptest.NewRequest(http.MethodPut, "/api/current",
		strings.NewReader(`{"project_id":"`+created.ID+`","round_id":"R1"}`))
	req.Header.Set("Content-Type", "application/json")
	w = serve(a, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(a, httptest.NewRequest(http.MethodGet, "/api/projects/"+created.ID+"/rounds/R1/analysis/results", nil))
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = serve(a, httptest.NewRequest(http.MethodDelete, "/api/projects/"+created.ID, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(a, httptest.NewRequest(http.MethodGet, "/api/projects/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPrometheusEndpoint(t *testing.T) {
	a := newTestApplication(t)

	serve(a, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	w := serve(a, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestStartupHealthCheck(t *testing.T) {
	a := newTestApplication(t)
	assert.NoError(t, a.performStartupHealthCheck(context.Background()))
}

func TestStopClosesStore(t *testing.T) {
	a := newTestApplication(t)
	require.NoError(t, a.Stop(context.Background()))
	assert.Error(t, a.Store.Catalog().Ping(context.Background()))
}

func TestRoundEventsOverWebSocket(t *testing.T) {
	a := newTestApplication(t)
	srv := httptest.NewServer(a.Router)
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	read := func() events.Message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		var msg events.Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	assert.Equal(t, events.MessageTypeConnection, read().Type)
	require.Eventually(t, func() bool { return a.WebSocketHub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = a.Services.Analysis.Run(context.Background(), "missing", "R1", services.RunRequest{Reference: "2024-01"})
	require.Error(t, err)

	var statuses []string
	for i := 0; i < 2; i++ {
		msg := read()
		require.Equal(t, events.MessageTypeRoundSnapshot, msg.Type)
		data := msg.Data.(map[string]interface{})
		assert.Equal(t, "missing", data["project_id"])
		statuses = append(statuses, data["status"].(string))
	}
	assert.Equal(t, []string{"running", "failed"}, statuses)
}

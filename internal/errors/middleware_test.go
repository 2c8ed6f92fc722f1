package errors

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"carecohort/internal/shared/testutil"
)

func TestErrorMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		query    string
		level    slog.Level
		logged   bool
		redacted bool
	}{
		{name: "client error with body", status: http.StatusBadRequest, body: `{"periodo":"dentro","cpf":"12345678900"}`, query: "janela=12", level: slog.LevelWarn, logged: true, redacted: true},
		{name: "server error", status: http.StatusInternalServerError, level: slog.LevelError, logged: true},
		{name: "success is not logged", status: http.StatusOK, body: `{"name":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			var seen string
			h := NewErrorMiddleware(logger).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				seen = string(b)
				w.WriteHeader(tt.status)
			}))

			target := "/api/x"
			if tt.query != "" {
				target += "?" + tt.query
			}
			r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			h.ServeHTTP(httptest.NewRecorder(), r)

			assert.Equal(t, tt.body, seen, "handler still reads the body")
			if !tt.logged {
				assert.False(t, logs.ContainsMessage("request failed"))
				return
			}
			testutil.AssertLogContains(t, logs, tt.level, "request failed")
			if tt.query != "" {
				testutil.AssertLogAttr(t, logs, "query", tt.query)
			}
			if tt.redacted {
				records := logs.GetRecordsByLevel(tt.level)
				logged, _ := records[len(records)-1].Attrs["request_body"].(string)
				assert.Contains(t, logged, "[REDACTED]")
				assert.NotContains(t, logged, "12345678900")
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(NewErrorHandler(nil, false))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(42)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSanitizeRequestBody(t *testing.T) {
	assert.Equal(t, "not json", sanitizeRequestBody("not json"))
	assert.Contains(t, sanitizeRequestBody(`{"nome":"Maria"}`), "[REDACTED]")
}

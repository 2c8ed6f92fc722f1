package errors

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// maxLoggedBody bounds how much of a failed JSON request body is logged.
const maxLoggedBody = 500

// ErrorMiddleware logs failed requests with their sanitized JSON body, so a
// rejected mapping or filter payload can be diagnosed from the logs.
// Successful requests are left to the access log.
type ErrorMiddleware struct {
	logger *slog.Logger
}

// NewErrorMiddleware creates a failed-request logger.
func NewErrorMiddleware(logger *slog.Logger) *ErrorMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorMiddleware{
		logger: logger.With(slog.String("component", "error_middleware")),
	}
}

// Handler returns the middleware handler function
func (m *ErrorMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		// Only small JSON bodies are captured; uploads are multipart and large.
		var requestBody []byte
		if r.Body != nil && isJSON(r) && r.ContentLength > 0 && r.ContentLength < 1<<20 {
			requestBody, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(requestBody))
		}

		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status < 400 {
			return
		}
		logLevel := slog.LevelWarn
		if status >= 500 {
			logLevel = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		}
		if r.URL.RawQuery != "" {
			attrs = append(attrs, slog.String("query", r.URL.RawQuery))
		}
		if len(requestBody) > 0 {
			body := sanitizeRequestBody(string(requestBody))
			if len(body) > maxLoggedBody {
				body = body[:maxLoggedBody] + "..."
			}
			attrs = append(attrs, slog.String("request_body", body))
		}

		m.logger.LogAttrs(r.Context(), logLevel, "request failed", attrs...)
	})
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// sanitizeRequestBody redacts beneficiary identifiers a client may echo back
// in a JSON body (filters, mapping payloads) before the body is logged.
func sanitizeRequestBody(body string) string {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return body
	}
	for _, field := range []string{"identificador", "id_beneficiario", "cpf", "nome", "token"} {
		if _, exists := data[field]; exists {
			data[field] = "[REDACTED]"
		}
	}
	sanitized, _ := json.Marshal(data)
	return string(sanitized)
}

// RecoveryMiddleware provides panic recovery with proper error responses
func RecoveryMiddleware(handler *ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					handler.HandlePanic(w, r, rec)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

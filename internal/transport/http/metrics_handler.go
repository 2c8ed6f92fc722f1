package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "carecohort/internal/errors"
	"carecohort/internal/services"
)

// MetricsHandler serves the Prometheus scrape endpoint and storage
// statistics.
type MetricsHandler struct {
	prometheus   http.Handler
	health       *services.HealthService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewMetricsHandler creates a metrics handler. prometheus may be nil when
// metrics are disabled.
func NewMetricsHandler(prometheus http.Handler, health *services.HealthService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *MetricsHandler {
	return &MetricsHandler{
		prometheus:   prometheus,
		health:       health,
		logger:       logger.With(slog.String("handler", "metrics")),
		errorHandler: errorHandler,
	}
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetMetrics)
	r.Get("/stats", h.GetStats)
	return r
}

// GetMetrics serves the Prometheus exposition format
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if h.prometheus == nil {
		h.errorHandler.HandleError(w, r, apierrors.New(http.StatusNotFound, apierrors.CodeNotFound, "Metrics are disabled"))
		return
	}
	h.prometheus.ServeHTTP(w, r)
}

// GetStats returns storage statistics
func (h *MetricsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.health.SystemStats(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

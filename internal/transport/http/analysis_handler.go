package http

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"carecohort/internal/cohort"
	"carecohort/internal/config"
	apierrors "carecohort/internal/errors"
	"carecohort/internal/middleware"
	"carecohort/internal/services"
	"carecohort/internal/storage"
	"carecohort/internal/tabular"
	api "carecohort/pkg/contracts/api/v1"
)

// Download file names.
const (
	tenureWorkbookName = "base_calculada_completa.xlsx"
	multipartMemory    = 32 << 20
	maxWindowMonths    = 240
)

// filterParams are the query parameters that select dashboard filters. A
// request naming none of them uses the saved filters of the round.
var filterParams = []string{"periodo", "momentoZero", "momento_zero", "janela", "grupos", "agrupamento_assistencial"}

// AnalysisHandler handles the round-level analysis workflow.
type AnalysisHandler struct {
	service         AnalysisServiceInterface
	validator       *middleware.Validator
	logger          *slog.Logger
	errorHandler    *apierrors.ErrorHandler
	maxUploadBytes  int64
	windowCapMonths int
}

// AnalysisHandlerConfig tunes the analysis handler.
type AnalysisHandlerConfig struct {
	MaxUploadBytes  int64
	WindowCapMonths int
}

// NewAnalysisHandler creates an analysis handler.
func NewAnalysisHandler(service AnalysisServiceInterface, validator *middleware.Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, cfg AnalysisHandlerConfig) *AnalysisHandler {
	if cfg.WindowCapMonths <= 0 {
		cfg.WindowCapMonths = cohort.DefaultWindowCapMonths
	}
	return &AnalysisHandler{
		service:         service,
		validator:       validator,
		logger:          logger.With(slog.String("component", "analysis_handler")),
		errorHandler:    errorHandler,
		maxUploadBytes:  cfg.MaxUploadBytes,
		windowCapMonths: cfg.WindowCapMonths,
	}
}

// Routes returns the routes of one round. They are mounted below
// /api/projects/{projectID}/rounds/{roundID}.
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.RoundCtx)

	r.Post("/upload", h.Upload)
	r.Get("/mapping/suggestions", h.Suggestions)

	r.Route("/analysis", func(r chi.Router) {
		r.Post("/preview", h.PreviewTenure)
		r.Post("/download-preview", h.DownloadTenure)
		r.Post("/run", h.Run)
		r.Get("/results", h.Results)
		r.Get("/filter-options", h.FilterOptions)
		r.Get("/cost-drivers", h.CostDrivers)
		r.Get("/filters", h.GetFilters)
		r.Put("/filters", h.SaveFilters)
		r.Get("/export", h.Export)
	})
	return r
}

// RoundCtx rejects round IDs that could escape the storage root.
func (h *AnalysisHandler) RoundCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !validPathID(chi.URLParam(r, "roundID")) {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("roundID", "Invalid round identifier"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func roundParams(r *http.Request) (string, string) {
	return chi.URLParam(r, "projectID"), chi.URLParam(r, "roundID")
}

// Upload handles POST …/upload with multipart fields "beneficiarios" and
// "ficha".
func (h *AnalysisHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	roster, rosterName, err := formFile(r, config.RosterUploadField)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer roster.Close()
	events, eventsName, err := formFile(r, config.EventsUploadField)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer events.Close()

	projectID, roundID := roundParams(r)
	summary, err := h.service.Upload(r.Context(), projectID, roundID,
		services.UploadFile{Name: rosterName, Reader: roster},
		services.UploadFile{Name: eventsName, Reader: events})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

func formFile(r *http.Request, field string) (multipart.File, string, error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", apierrors.MissingUploadError(field)
	}
	if err != nil {
		return nil, "", apierrors.InvalidRequestWithError(err)
	}
	return f, hdr.Filename, nil
}

// Suggestions handles GET …/mapping/suggestions
func (h *AnalysisHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	projectID, roundID := roundParams(r)
	suggestions, err := h.service.Suggestions(r.Context(), projectID, roundID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, suggestions)
}

// PreviewTenure handles POST …/analysis/preview
func (h *AnalysisHandler) PreviewTenure(w http.ResponseWriter, r *http.Request) {
	var req api.TenurePreviewRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	projectID, roundID := roundParams(r)
	preview, err := h.service.PreviewTenure(r.Context(), projectID, roundID, services.TenureRequest{
		RosterMapping: req.Mapping.Roster,
		Reference:     req.Reference,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, preview)
}

// DownloadTenure handles POST …/analysis/download-preview
func (h *AnalysisHandler) DownloadTenure(w http.ResponseWriter, r *http.Request) {
	var req api.TenurePreviewRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	projectID, roundID := roundParams(r)
	data, err := h.service.TenureWorkbook(r.Context(), projectID, roundID, services.TenureRequest{
		RosterMapping: req.Mapping.Roster,
		Reference:     req.Reference,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeAttachment(w, tenureWorkbookName, tabular.ContentTypeXLSX, data)
}

// Run handles POST …/analysis/run
func (h *AnalysisHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req api.RunAnalysisRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	projectID, roundID := roundParams(r)
	summary, err := h.service.Run(r.Context(), projectID, roundID, services.RunRequest{
		Mapping: storage.MappingConfig{
			Roster: req.Mapping.Roster,
			Events: req.Mapping.Events,
		},
		Reference:        req.Reference,
		ZThreshold:       req.ZThreshold,
		RequireUniqueIDs: req.RequireUniqueIDs,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "analysis completed",
		slog.String("project_id", projectID),
		slog.String("round_id", roundID),
		slog.String("request_id", middleware.GetReqID(r.Context())))
	render.JSON(w, r, summary)
}

// Results handles GET …/analysis/results
func (h *AnalysisHandler) Results(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	projectID, roundID := roundParams(r)
	results, err := h.service.Results(r.Context(), projectID, roundID, filters)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, results)
}

// FilterOptions handles GET …/analysis/filter-options
func (h *AnalysisHandler) FilterOptions(w http.ResponseWriter, r *http.Request) {
	projectID, roundID := roundParams(r)
	options, err := h.service.FilterOptions(r.Context(), projectID, roundID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.FilterOptionsResponse{Status: "success", Options: options})
}

// CostDrivers handles GET …/analysis/cost-drivers
func (h *AnalysisHandler) CostDrivers(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	projectID, roundID := roundParams(r)
	if filters == nil {
		saved, err := h.service.DefaultFilters(r.Context(), projectID, roundID)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		filters = &saved
	}
	drivers, err := h.service.CostDrivers(r.Context(), projectID, roundID, filters)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.CostDriversResponse{Status: "success", Filters: *filters, Drivers: drivers})
}

// GetFilters handles GET …/analysis/filters
func (h *AnalysisHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	projectID, roundID := roundParams(r)
	filters, err := h.service.DefaultFilters(r.Context(), projectID, roundID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, filters)
}

// SaveFilters handles PUT …/analysis/filters
func (h *AnalysisHandler) SaveFilters(w http.ResponseWriter, r *http.Request) {
	var req api.FiltersRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	filters := cohort.Filters{
		Period:           normalizePeriod(req.Period),
		IncludeZeroMonth: req.IncludeZeroMonth,
		WindowCapMonths:  h.windowCapMonths,
		CohortLabels:     req.Cohorts,
		Groups:           req.Groups,
	}
	if req.Window != nil {
		filters.WindowCapMonths = *req.Window
	}

	projectID, roundID := roundParams(r)
	if err := h.service.SaveFilters(r.Context(), projectID, roundID, filters); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, filters)
}

// Export handles GET …/analysis/export
func (h *AnalysisHandler) Export(w http.ResponseWriter, r *http.Request) {
	projectID, roundID := roundParams(r)
	data, err := h.service.ConsolidatedWorkbook(r.Context(), projectID, roundID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeAttachment(w, fmt.Sprintf("consolidado_%s.xlsx", roundID), tabular.ContentTypeXLSX, data)
}

// parseFilters reads the dashboard filters from the query string. It
// returns nil when the request names no filter parameter.
func (h *AnalysisHandler) parseFilters(r *http.Request) (*cohort.Filters, error) {
	q := r.URL.Query()
	named := false
	for _, p := range filterParams {
		if q.Has(p) {
			named = true
			break
		}
	}
	if !named {
		return nil, nil
	}

	window, err := middleware.QueryInt(r, "janela", 0, maxWindowMonths, h.windowCapMonths)
	if err != nil {
		return nil, err
	}
	zeroParam := "momentoZero"
	if !q.Has(zeroParam) {
		zeroParam = "momento_zero"
	}
	includeZero, err := middleware.QueryBool(r, zeroParam, false)
	if err != nil {
		return nil, err
	}

	return &cohort.Filters{
		Period:           normalizePeriod(q.Get("periodo")),
		IncludeZeroMonth: includeZero,
		WindowCapMonths:  window,
		CohortLabels:     middleware.QueryList(r, "grupos"),
		Groups:           middleware.QueryList(r, "agrupamento_assistencial"),
	}, nil
}

// normalizePeriod maps unknown or empty selectors to the inside window.
func normalizePeriod(s string) cohort.Period {
	switch p := cohort.Period(strings.ToLower(strings.TrimSpace(s))); p {
	case cohort.PeriodInside, cohort.PeriodOutside, cohort.PeriodBoth:
		return p
	}
	return cohort.PeriodInside
}

func writeAttachment(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// validPathID accepts catalog identifiers: non-empty, no separators and no
// parent references.
func validPathID(id string) bool {
	return id != "" && len(id) <= 200 && !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "carecohort/internal/errors"
	"carecohort/internal/middleware"
	"carecohort/internal/storage"
	api "carecohort/pkg/contracts/api/v1"
)

// ProjectHandler handles projects, rounds and the current selection.
type ProjectHandler struct {
	service      ProjectServiceInterface
	validator    *middleware.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewProjectHandler creates a project handler.
func NewProjectHandler(service ProjectServiceInterface, validator *middleware.Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ProjectHandler {
	return &ProjectHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "project_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the project routes. rounds serves everything below
// /{projectID}/rounds/{roundID}; it may be nil.
func (h *ProjectHandler) Routes(rounds http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListProjects)
	r.Post("/", h.CreateProject)

	r.Route("/{projectID}", func(r chi.Router) {
		r.Use(h.ProjectCtx)
		r.Get("/", h.GetProject)
		r.Delete("/", h.DeleteProject)
		r.Get("/rounds", h.ListRounds)
		r.Post("/rounds", h.CreateRound)
		if rounds != nil {
			r.Mount("/rounds/{roundID}", rounds)
		}
	})
	return r
}

// CurrentRoutes returns the routes of the current selection.
func (h *ProjectHandler) CurrentRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetCurrent)
	r.Put("/", h.SelectCurrent)
	return r
}

// ProjectCtx rejects project IDs that could escape the storage root.
func (h *ProjectHandler) ProjectCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !validPathID(chi.URLParam(r, "projectID")) {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("projectID", "Invalid project identifier"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListProjects handles GET /api/projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, projects)
}

// CreateProject handles POST /api/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req api.CreateProjectRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	project, err := h.service.CreateProject(r.Context(), storage.NewProject{
		Name:        req.Name,
		Client:      req.Client,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "project created",
		slog.String("project_id", project.ID),
		slog.String("request_id", middleware.GetReqID(r.Context())))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, project)
}

// GetProject handles GET /api/projects/{projectID}
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.service.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, project)
}

// DeleteProject handles DELETE /api/projects/{projectID}
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if err := h.service.DeleteProject(r.Context(), projectID); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.StatusResponse{Status: "deleted", ID: projectID})
}

// ListRounds handles GET /api/projects/{projectID}/rounds
func (h *ProjectHandler) ListRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := h.service.ListRounds(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, rounds)
}

// CreateRound handles POST /api/projects/{projectID}/rounds
func (h *ProjectHandler) CreateRound(w http.ResponseWriter, r *http.Request) {
	var req api.CreateRoundRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	round, err := h.service.CreateRound(r.Context(), chi.URLParam(r, "projectID"), storage.NewRound{
		Name:       req.Name,
		Competence: req.Competence,
		Notes:      req.Notes,
		CopyFrom:   req.CopyFrom,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, round)
}

// GetCurrent handles GET /api/current
func (h *ProjectHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	current, err := h.service.Current(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, current)
}

// SelectCurrent handles PUT /api/current
func (h *ProjectHandler) SelectCurrent(w http.ResponseWriter, r *http.Request) {
	var req api.SelectCurrentRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	current, err := h.service.SelectCurrent(r.Context(), req.ProjectID, req.RoundID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, current)
}

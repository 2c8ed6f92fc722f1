// Package http implements the HTTP handlers of the carecohort API. Handlers
// are a thin layer over internal/services: they decode and validate
// requests, call one service method and render the result.
//
// # Routes
//
//	/api/projects                                   ProjectHandler.Routes
//	/api/projects/{projectID}/rounds/{roundID}/...  AnalysisHandler.Routes
//	/api/current                                    ProjectHandler.CurrentRoutes
//	/api/health                                     HealthHandler.Routes
//	/api/metrics                                    MetricsHandler.Routes
//
// # Handler Structure
//
// Each handler follows this pattern:
//
//	func (h *Handler) Something(w http.ResponseWriter, r *http.Request) {
//	    var req api.SomethingRequest
//	    if err := h.validator.DecodeJSON(r, &req); err != nil {
//	        h.errorHandler.HandleError(w, r, err)
//	        return
//	    }
//	    result, err := h.service.Something(r.Context(), req)
//	    if err != nil {
//	        h.errorHandler.HandleError(w, r, err)
//	        return
//	    }
//	    render.JSON(w, r, result)
//	}
//
// # Error Handling
//
// Every error goes through errors.ErrorHandler and is written as an RFC 7807
// problem document:
//
//	{
//	    "type": "/errors/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "round not found",
//	    "instance": "/api/projects/p1/rounds/r1/analysis/results",
//	    "trace_id": "req-123"
//	}
//
// Path identifiers are checked by ProjectCtx and RoundCtx before any
// handler runs.
package http

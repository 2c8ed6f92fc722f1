package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"carecohort/internal/cohort"
)

// Common error types following RFC 7807
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeServiceDown      = "/errors/service-unavailable"
	TypeTimeout          = "/errors/timeout"
	TypeConflict         = "/errors/conflict"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
)

// Domain-specific error types
const (
	TypeProjectNotFound     = "/errors/project/not-found"
	TypeRoundNotFound       = "/errors/round/not-found"
	TypeInputsNotFound      = "/errors/inputs/not-found"
	TypeAnalysisNotRun      = "/errors/analysis/not-run"
	TypePrecondition        = "/errors/analysis/precondition"
	TypeDuplicateIdentifier = "/errors/analysis/duplicate-identifier"
	TypeUnsupportedFormat   = "/errors/upload/unsupported-format"
	TypeStorage             = "/errors/storage"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	_ = render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request took too long to process and was cancelled", path)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var precondition *cohort.PreconditionError
	if errors.As(err, &precondition) {
		return NewProblemDetails(http.StatusUnprocessableEntity, TypePrecondition, "Analysis Precondition Failed",
			precondition.Error(), path).
			WithExtension("precondition", precondition.Precondition)
	}

	var duplicate *cohort.DuplicateIdentifierError
	if errors.As(err, &duplicate) {
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeDuplicateIdentifier, "Duplicate Roster Identifiers",
			duplicate.Error(), path).
			WithExtension("identifiers", duplicate.IDs)
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return NewProblemDetails(http.StatusRequestEntityTooLarge, TypePayloadTooLarge, "Payload Too Large",
			fmt.Sprintf("The request body exceeds the maximum allowed size of %d bytes", maxBytes.Limit), path)
	}

	switch {
	case errors.Is(err, ErrProjectNotFound):
		return NewProblemDetails(http.StatusNotFound, TypeProjectNotFound, "Project Not Found", err.Error(), path)
	case errors.Is(err, ErrRoundNotFound):
		return NewProblemDetails(http.StatusNotFound, TypeRoundNotFound, "Round Not Found", err.Error(), path)
	case errors.Is(err, ErrInputsNotFound):
		return NewProblemDetails(http.StatusNotFound, TypeInputsNotFound, "Input Tables Not Found",
			"Upload the roster and event tables for this round first", path)
	case errors.Is(err, ErrAnalysisNotRun):
		return NewProblemDetails(http.StatusConflict, TypeAnalysisNotRun, "Analysis Not Run",
			"Run the analysis for this round before reading its results", path)
	case errors.Is(err, ErrUnsupportedFormat):
		return NewProblemDetails(http.StatusUnsupportedMediaType, TypeUnsupportedFormat, "Unsupported File Format",
			err.Error(), path)
	case errors.Is(err, ErrEmptyUpload), errors.Is(err, ErrInvalidReference), errors.Is(err, ErrInvalidProjectName):
		return NewProblemDetails(http.StatusBadRequest, TypeValidation, "Validation Failed", err.Error(), path)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErrorToProblem(appErr, path)
	}

	return NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"An unexpected error occurred while processing your request", path)
}

func appErrorToProblem(appErr *AppError, path string) *ProblemDetails {
	var problem *ProblemDetails
	switch appErr.Type {
	case ErrTypeNotFound:
		problem = NewProblemDetails(http.StatusNotFound, TypeNotFound, "Resource Not Found", appErr.Message, path)
	case ErrTypeValidation, ErrTypeMapping:
		problem = NewProblemDetails(http.StatusBadRequest, TypeValidation, "Validation Failed", appErr.Message, path)
	case ErrTypeParsing:
		problem = NewProblemDetails(http.StatusUnprocessableEntity, TypeValidation, "Unreadable Table", appErr.Error(), path)
	case ErrTypeStorage:
		problem = NewProblemDetails(http.StatusInternalServerError, TypeStorage, "Storage Error", appErr.Message, path)
	default:
		problem = NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error", appErr.Message, path)
	}
	problem.WithExtension("error_type", string(appErr.Type))
	if len(appErr.Context) > 0 {
		problem.WithExtension("context", appErr.Context)
	}
	return problem
}

func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case CodeValidationFailed, CodeInvalidRequest, CodeMissingParameter:
		problemType = TypeValidation
	case CodeNotFound:
		problemType = TypeNotFound
	case CodeConflict:
		problemType = TypeConflict
	case CodeRateLimitExceeded:
		problemType = TypeRateLimit
	case CodePayloadTooLarge:
		problemType = TypePayloadTooLarge
	case CodeServiceUnavailable:
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	_ = render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	_ = render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodNotAllowed,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	_ = render.Render(w, r, problem)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	err := NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "bad filters", []string{"janela"})
	assert.Equal(t, "bad filters", err.Error())

	var target *APIError
	require.True(t, stderrors.As(fmt.Errorf("wrapped: %w", err), &target))
	assert.Equal(t, CodeValidationFailed, target.ErrorCode)
}

func TestNewValidationErrors(t *testing.T) {
	err := NewValidationErrors([]ValidationError{{Field: "name", Message: "required"}})
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	details, ok := err.Details.(ValidationErrors)
	require.True(t, ok)
	assert.Len(t, details.Errors, 1)
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, ErrRateLimitExceeded)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, CodeRateLimitExceeded, body.Error.ErrorCode)
}

func TestAppError(t *testing.T) {
	cause := stderrors.New("permission denied")
	err := NewStorageError("write consolidated snapshot", cause).WithContext("round", "r1")

	assert.Equal(t, "[STORAGE] write consolidated snapshot: permission denied", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "r1", err.Context["round"])

	assert.Equal(t, "[NOT_FOUND] project not found", NewAppError(ErrTypeNotFound, "project not found", nil).Error())
	assert.Equal(t, ErrTypeConfig, NewConfigError("c", nil).Type)
	assert.Equal(t, ErrTypeParsing, NewParsingError("p", nil).Type)
}

func TestProblemDetailsMarshal(t *testing.T) {
	p := NewProblemDetails(http.StatusConflict, TypeAnalysisNotRun, "Analysis Not Run", "", "/x").
		WithExtension("trace_id", "abc").
		WithExtension("status", "overridden")

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, float64(http.StatusConflict), body["status"], "standard members win over extensions")
	assert.Equal(t, "abc", body["trace_id"])
	assert.NotContains(t, body, "detail")
}

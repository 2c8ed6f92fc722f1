package services

import (
	apperrors "carecohort/internal/errors"
)

// Service errors. The storage and lookup failures alias the sentinels of
// internal/errors so handlers can map them without importing both packages.
var (
	ErrProjectNotFound    = apperrors.ErrProjectNotFound
	ErrRoundNotFound      = apperrors.ErrRoundNotFound
	ErrInputsNotFound     = apperrors.ErrInputsNotFound
	ErrAnalysisNotRun     = apperrors.ErrAnalysisNotRun
	ErrUnsupportedFormat  = apperrors.ErrUnsupportedFormat
	ErrEmptyUpload        = apperrors.ErrEmptyUpload
	ErrInvalidReference   = apperrors.ErrInvalidReference
	ErrInvalidProjectName = apperrors.ErrInvalidProjectName

	// Health errors
	ErrServiceUnavailable = apperrors.ErrServiceUnavailable
)

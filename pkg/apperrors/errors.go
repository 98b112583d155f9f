package apperrors

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrExtractionFailed       = errors.New("metadata extraction failed")
	ErrUnsupportedColumnType  = errors.New("unsupported column type")
	ErrGenerationUnavailable  = errors.New("generation service unavailable")
	ErrFidelityBelowThreshold = errors.New("fidelity score below threshold")
	ErrAttemptsExhausted      = errors.New("generation attempts exhausted")
	ErrNoValidOutput          = errors.New("no schema-valid output produced")
	ErrDictionaryInvalid      = errors.New("data dictionary invalid")
)

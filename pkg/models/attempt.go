package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Program Origin
// ============================================================================

// ProgramOrigin records where an attempt's program came from.
type ProgramOrigin string

const (
	// ProgramOriginCached marks a program reused from the catalog.
	ProgramOriginCached ProgramOrigin = "cached"

	// ProgramOriginGenerated marks a freshly synthesized program.
	ProgramOriginGenerated ProgramOrigin = "generated"

	// ProgramOriginTemplate marks the deterministic fallback program.
	ProgramOriginTemplate ProgramOrigin = "template"
)

// ValidProgramOrigins contains all valid origin values.
var ValidProgramOrigins = []ProgramOrigin{
	ProgramOriginCached,
	ProgramOriginGenerated,
	ProgramOriginTemplate,
}

// IsValidProgramOrigin checks if the given origin is valid.
func IsValidProgramOrigin(o ProgramOrigin) bool {
	return slices.Contains(ValidProgramOrigins, o)
}

// ============================================================================
// Generation Attempt
// ============================================================================

// GenerationAttempt is the audit record of one pass through program
// acquisition, execution, and validation. Attempts are kept even when
// they fail so a run's history explains its outcome.
type GenerationAttempt struct {
	// AttemptNumber starts at 1.
	AttemptNumber int `json:"attempt_number"`

	Origin          ProgramOrigin   `json:"origin"`
	ProgramSource   string          `json:"program_source,omitempty"`
	ProgramLanguage ProgramLanguage `json:"program_language,omitempty"`

	// CatalogEntryID is set when Origin is cached.
	CatalogEntryID *uuid.UUID `json:"catalog_entry_id,omitempty"`

	// ExecutionError describes a sandbox or schema failure. Empty when
	// execution produced a validatable dataset.
	ExecutionError string `json:"execution_error,omitempty"`

	// Report is nil when execution failed before validation.
	Report *FidelityReport `json:"report,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Succeeded reports whether the attempt passed validation.
func (a *GenerationAttempt) Succeeded() bool {
	return a.ExecutionError == "" && a.Report != nil && a.Report.Passed
}

// Score returns the attempt's aggregate fidelity score, or -1 when the
// attempt never reached validation. The negative sentinel keeps failed
// attempts below any scored one when picking a best attempt.
func (a *GenerationAttempt) Score() float64 {
	if a.Report == nil {
		return -1
	}
	return a.Report.AggregateScore
}

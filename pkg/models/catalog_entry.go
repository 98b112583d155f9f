package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Program Language
// ============================================================================

// ProgramLanguage tags the runtime a catalog program targets.
type ProgramLanguage string

const (
	// ProgramLanguageGo marks interpreted Go source.
	ProgramLanguageGo ProgramLanguage = "go"

	// ProgramLanguageWasm marks a base64-encoded WebAssembly module.
	ProgramLanguageWasm ProgramLanguage = "wasm"
)

// ValidProgramLanguages contains all valid program language tags.
var ValidProgramLanguages = []ProgramLanguage{
	ProgramLanguageGo,
	ProgramLanguageWasm,
}

// IsValidProgramLanguage checks if the given tag is valid.
func IsValidProgramLanguage(l ProgramLanguage) bool {
	return slices.Contains(ValidProgramLanguages, l)
}

// ============================================================================
// Catalog Entry
// ============================================================================

// CatalogEntry is one stored generator program together with the fingerprint
// of the dataset it was validated against. Entries carry no dataset content
// beyond the fingerprint vector and structural hash.
type CatalogEntry struct {
	ID uuid.UUID `json:"id"`

	// StructuralHash buckets entries by schema shape for exact-match lookup.
	StructuralHash string `json:"structural_hash"`

	// FingerprintVector is the similarity search key, same dimensionality
	// as DatasetMetadata.FingerprintVector.
	FingerprintVector []float64 `json:"fingerprint_vector"`

	ProgramSource   string          `json:"program_source"`
	ProgramLanguage ProgramLanguage `json:"program_language"`

	// SuccessCount is the number of validated reuses.
	SuccessCount int64 `json:"success_count"`

	// LastValidatedScore is the aggregate fidelity score from the most
	// recent accepted run.
	LastValidatedScore float64 `json:"last_validated_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

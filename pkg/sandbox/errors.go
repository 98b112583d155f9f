package sandbox

import (
	"errors"
	"fmt"
)

// FailureKind classifies why an execution was rejected or aborted.
type FailureKind string

const (
	// FailureViolation marks a program that asked for a forbidden
	// capability: a disallowed import, identifier, or path literal.
	FailureViolation FailureKind = "violation"

	// FailureTimeout marks an execution that exceeded the time budget.
	FailureTimeout FailureKind = "timeout"

	// FailureMemoryExceeded marks an execution that exceeded the memory or
	// output budget.
	FailureMemoryExceeded FailureKind = "memory_exceeded"

	// FailureSchemaMismatch marks output that is not a schema-valid dataset.
	FailureSchemaMismatch FailureKind = "schema_mismatch"

	// FailureExecution marks a program that ran but failed: an eval error,
	// a panic, or an error returned by Generate.
	FailureExecution FailureKind = "execution"
)

// Error is a classified sandbox failure. Callers branch on Kind through the
// predicate helpers rather than string matching.
type Error struct {
	Kind    FailureKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("sandbox %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("sandbox %s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind FailureKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func kindOf(err error) FailureKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsViolation reports whether err is a capability violation.
func IsViolation(err error) bool {
	return kindOf(err) == FailureViolation
}

// IsTimeout reports whether err is a budget timeout.
func IsTimeout(err error) bool {
	return kindOf(err) == FailureTimeout
}

// IsMemoryExceeded reports whether err is a memory or output budget breach.
func IsMemoryExceeded(err error) bool {
	return kindOf(err) == FailureMemoryExceeded
}

// IsSchemaMismatch reports whether err marks schema-invalid output.
func IsSchemaMismatch(err error) bool {
	return kindOf(err) == FailureSchemaMismatch
}

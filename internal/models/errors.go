// Package models defines the data structures for the credit risk scoring engine.
package models

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrValidation       = errors.New("validation failed")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrScoringFailed    = errors.New("scoring failed")
)

// Validation reasons reported to callers.
const (
	ReasonRequired    = "required"
	ReasonNotANumber  = "not a number"
	ReasonNotABoolean = "not a boolean"
	ReasonNegative    = "must be non-negative"
	ReasonOutOfRange  = "out of range"
	ReasonUnsupported = "unsupported"
	ReasonMalformed   = "malformed json"
)

// Error envelope codes.
const (
	ErrorCodeValidation    = "validation"
	ErrorCodeScoringFailed = "scoring_failed"
)

// ValidationError reports bad or missing input for a single field.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// NewValidationError creates a validation error for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ModelUnavailableError is returned by a model scorer whose prerequisites are
// not met. The dispatcher treats it as a signal to fall back, never as a failure.
type ModelUnavailableError struct {
	Kind   EntityKind
	Reason string
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model unavailable for %s: %s", e.Kind, e.Reason)
}

func (e *ModelUnavailableError) Unwrap() error {
	return ErrModelUnavailable
}

// ScoringError wraps an unexpected internal fault raised while scoring.
type ScoringError struct {
	Kind  EntityKind
	Cause error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring failed for %s: %v", e.Kind, e.Cause)
}

func (e *ScoringError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrScoringFailed) match any ScoringError.
func (e *ScoringError) Is(target error) bool {
	return target == ErrScoringFailed
}

// ErrorResponse is the error envelope returned to callers. Validation failures
// carry field and reason; scoring failures carry only a generic detail.
type ErrorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// NewErrorResponse converts an engine error into its public envelope.
// Anything that is not a ValidationError becomes a scoring failure with a
// generic detail so internal state never leaks to the caller.
func NewErrorResponse(err error, reference string) ErrorResponse {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return ErrorResponse{
			Error:  ErrorCodeValidation,
			Field:  verr.Field,
			Reason: verr.Reason,
		}
	}

	detail := "internal error while scoring"
	if reference != "" {
		detail += " (reference " + reference + ")"
	}
	return ErrorResponse{
		Error:  ErrorCodeScoringFailed,
		Detail: detail,
	}
}

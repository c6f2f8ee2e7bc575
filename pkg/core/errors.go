// Package core provides the Trinity assistant client: intent dispatch, knowledge
// resolution, teaching, feedback and the greeting/statistics flows.
package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotFound indicates that a requested record was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageOperation indicates that a storage operation failed.
	ErrStorageOperation = errors.New("storage operation failed")

	// ErrLLMOperation indicates that a text-generation call failed.
	ErrLLMOperation = errors.New("llm operation failed")

	// ErrExtractionFailure indicates that a required entity (person, app name,
	// location) could not be found in the utterance.
	ErrExtractionFailure = errors.New("extraction failure")

	// ErrCollaboratorUnavailable indicates that an external call errored or timed out.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrQualityBelowThreshold signals that a generated answer failed the quality gate.
	// It is internal and never shown to users.
	ErrQualityBelowThreshold = errors.New("quality below threshold")

	// ErrUnauthorized indicates that the caller identity is missing or invalid.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMissingUsername is returned by Greet when no username is known or supplied.
	ErrMissingUsername = errors.New("missing username")

	// ErrMissingLocation is returned by Greet when no location is known or supplied.
	ErrMissingLocation = errors.New("missing location")
)

// AssistantError wraps errors with operation context.
//
// Example:
//
//	err := &AssistantError{
//	    Op:  "Dispatch",
//	    Err: ErrUnauthorized,
//	}
//	// Error() returns: "trinity: Dispatch: unauthorized"
type AssistantError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns "trinity: <Op>: <Err>".
func (e *AssistantError) Error() string {
	return fmt.Sprintf("trinity: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error so errors.Is and errors.As see through it.
func (e *AssistantError) Unwrap() error {
	return e.Err
}

// NewAssistantError wraps err with the operation name.
//
// If err is nil, returns nil, so it is safe to use unconditionally:
//
//	return NewAssistantError("Teach", err)
func NewAssistantError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &AssistantError{
		Op:  op,
		Err: err,
	}
}

// Classify maps err onto the error taxonomy exposed to callers and metrics.
// It returns "" for nil.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrExtractionFailure):
		return "extraction_failure"
	case errors.Is(err, ErrCollaboratorUnavailable):
		return "collaborator_unavailable"
	case errors.Is(err, ErrQualityBelowThreshold):
		return "quality_below_threshold"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}

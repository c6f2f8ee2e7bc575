package core_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oceanbase/trinity-go/pkg/core"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "ErrNotFound", err: core.ErrNotFound, expected: "not found"},
		{name: "ErrInvalidConfig", err: core.ErrInvalidConfig, expected: "invalid configuration"},
		{name: "ErrStorageOperation", err: core.ErrStorageOperation, expected: "storage operation failed"},
		{name: "ErrExtractionFailure", err: core.ErrExtractionFailure, expected: "extraction failure"},
		{name: "ErrCollaboratorUnavailable", err: core.ErrCollaboratorUnavailable, expected: "collaborator unavailable"},
		{name: "ErrUnauthorized", err: core.ErrUnauthorized, expected: "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAssistantError(t *testing.T) {
	originalErr := errors.New("original error")
	err := core.NewAssistantError("Dispatch", originalErr)

	assert.Equal(t, "trinity: Dispatch: original error", err.Error())
	assert.True(t, errors.Is(err, originalErr))

	var ae *core.AssistantError
	assert.True(t, errors.As(err, &ae))
	assert.Equal(t, "Dispatch", ae.Op)

	assert.Nil(t, core.NewAssistantError("Dispatch", nil))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, ""},
		{core.NewAssistantError("Dispatch", core.ErrUnauthorized), "unauthorized"},
		{fmt.Errorf("%w: no person", core.ErrExtractionFailure), "extraction_failure"},
		{fmt.Errorf("%w: %w", core.ErrCollaboratorUnavailable, errors.New("timeout")), "collaborator_unavailable"},
		{core.ErrQualityBelowThreshold, "quality_below_threshold"},
		{core.ErrInvalidInput, "invalid_input"},
		{core.ErrStorageOperation, "internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, core.Classify(tt.err))
	}
}

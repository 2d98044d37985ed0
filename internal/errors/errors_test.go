package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		category  Category
		retryable bool
	}{
		{"config", ErrCodeConfigInvalid, CategoryConfig, false},
		{"graph not found", ErrCodeEntityNotFound, CategoryGraph, false},
		{"backend", ErrCodeStoreFailed, CategoryBackend, true},
		{"validation", ErrCodeInvalidInput, CategoryValidation, false},
		{"internal", ErrCodeInternal, CategoryInternal, false},
		{"cancelled", ErrCodeCancelled, CategoryInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestErrorChaining(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := Backend("store write failed", cause)

	require.ErrorIs(t, err, &GraphError{Code: ErrCodeStoreFailed})
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.True(t, IsRetryable(err))
}

func TestNotFoundHelpers(t *testing.T) {
	err := NotFound("alice")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsDuplicate(err))
	assert.Equal(t, "alice", err.Details["entity"])

	wrapped := fmt.Errorf("lookup: %w", err)
	assert.True(t, IsNotFound(wrapped))
}

func TestIsValidation_CoversParseAndCapacity(t *testing.T) {
	assert.True(t, IsValidation(Parse("unbalanced parens")))
	assert.True(t, IsValidation(Capacity("too many terms")))
	assert.True(t, IsValidation(Validation("importance out of range")))
	assert.False(t, IsValidation(NotFound("x")))
}

func TestFromContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := FromContext(ctx)
	require.NotNil(t, err)
	assert.True(t, IsCancelled(err))
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeStoreFailed, nil))
}

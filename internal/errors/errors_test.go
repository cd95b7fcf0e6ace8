package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
		severity Severity
	}{
		{"config", ErrCodeConfigInvalid, CategoryConfig, SeverityError},
		{"machine id", ErrCodeMachineIDRange, CategoryConfig, SeverityError},
		{"backend", ErrCodeIndexBackend, CategoryBackend, SeverityError},
		{"corrupt index is fatal", ErrCodeCorruptIndex, CategoryBackend, SeverityFatal},
		{"dimension", ErrCodeDimensionMismatch, CategoryValidation, SeverityError},
		{"embedding is warning", ErrCodeEmbeddingFailed, CategoryInternal, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Contains(t, err.Error(), tt.code)
		})
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeIndexBackend, nil))
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := BackendError("save failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestError_IsMatchesByCode(t *testing.T) {
	a := New(ErrCodeDimensionMismatch, "first", nil)
	b := New(ErrCodeDimensionMismatch, "second", nil)
	assert.ErrorIs(t, a, b)

	c := New(ErrCodeIndexBackend, "other", nil)
	assert.NotErrorIs(t, a, c)
}

func TestDimensionError(t *testing.T) {
	err := DimensionError(768, 4)
	require.True(t, IsDimensionMismatch(err))
	assert.Equal(t, "768", err.Details["expected"])
	assert.Equal(t, "4", err.Details["got"])

	// Survives wrapping.
	wrapped := fmt.Errorf("add document: %w", err)
	assert.True(t, IsDimensionMismatch(wrapped))
}

func TestIsConfig(t *testing.T) {
	assert.True(t, IsConfig(ConfigError("bad overlap", nil)))
	assert.False(t, IsConfig(BackendError("io", nil)))
	assert.False(t, IsConfig(stderrors.New("plain")))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeCorruptIndex, "mapping table truncated", nil)))
	assert.False(t, IsFatal(ConfigError("bad weights", nil)))
	assert.False(t, IsFatal(nil))
}

func TestWithDetail_Chaining(t *testing.T) {
	err := ConfigError("bad chunk params", nil).
		WithDetail("chunk_size", "100").
		WithDetail("overlap", "100")
	assert.Len(t, err.Details, 2)
}

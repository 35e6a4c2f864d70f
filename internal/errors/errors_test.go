package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	cause := stderrors.New("no such file")
	err := NewInvalidInputError("cannot open image", cause)

	assert.Equal(t, "invalid_input: cannot open image (caused by: no such file)", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewDegenerateHistogramError(12, 11)
	assert.Equal(t, "degenerate_histogram: clipped gray range [12, 11] is empty", bare.Error())
}

func TestIsType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		typ  ErrorType
		want bool
	}{
		{"direct match", NewEmptyContourSetError("vessels", 1250), ErrorTypeEmptyContourSet, true},
		{"wrapped by fmt", fmt.Errorf("image a.png: %w", NewInvalidInputError("bad", nil)), ErrorTypeInvalidInput, true},
		{"nested app errors", NewProcessingError("stage", NewCancelledError("detector", context.Canceled)), ErrorTypeCancelled, true},
		{"different type", NewProcessingError("stage", nil), ErrorTypeInvalidInput, false},
		{"plain error", stderrors.New("x"), ErrorTypeProcessing, false},
		{"nil", nil, ErrorTypeProcessing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsType(tt.err, tt.typ))
		})
	}
}

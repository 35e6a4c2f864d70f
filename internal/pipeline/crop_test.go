package pipeline

import (
	"image"
	"testing"

	apperrors "angioscan/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCrop(t *testing.T) {
	tests := []struct {
		bounds image.Rectangle
		want   image.Rectangle
	}{
		{image.Rect(0, 0, 500, 400), image.Rect(50, 40, 450, 360)},
		{image.Rect(0, 0, 259, 181), image.Rect(25, 18, 234, 163)},
		{image.Rect(0, 0, 9, 9), image.Rect(0, 0, 9, 9)},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultCrop(tt.bounds, 0.1), "bounds %v", tt.bounds)
	}
}

func TestResolveCrop(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 80)

	rect, err := ResolveCrop(bounds, nil, 0.1)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 8, 90, 72), rect)

	full := bounds
	rect, err = ResolveCrop(bounds, &full, 0.1)
	require.NoError(t, err)
	assert.Equal(t, bounds, rect)

	overhang := image.Rect(50, 40, 200, 200)
	rect, err = ResolveCrop(bounds, &overhang, 0.1)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(50, 40, 100, 80), rect)

	flipped := image.Rectangle{Min: image.Pt(60, 50), Max: image.Pt(10, 5)}
	rect, err = ResolveCrop(bounds, &flipped, 0.1)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 5, 60, 50), rect)

	outside := image.Rect(200, 200, 300, 300)
	_, err = ResolveCrop(bounds, &outside, 0.1)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
}

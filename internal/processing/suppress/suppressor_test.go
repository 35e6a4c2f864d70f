package suppress

import (
	"context"
	"image"
	"testing"

	"angioscan/internal/config"
	"angioscan/internal/logger"
	"angioscan/internal/models"
	"angioscan/internal/processing/contours"
	"angioscan/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discContours(t *testing.T, w, h int, center image.Point, radius int) ([]models.Contour, int) {
	t.Helper()
	mask := testutil.Gray(t, w, h, 0)
	testutil.Disc(mask, center, radius, 255)

	found, _ := contours.FindExternal(mask, 0)
	require.Len(t, found, 1)
	return found, testutil.Count(t, mask, 255)
}

func TestSuppressPaintsAndDilates(t *testing.T) {
	center := image.Pt(60, 60)
	gray := testutil.Gray(t, 120, 120, 200)
	testutil.Disc(gray, center, 20, 40)
	src := testutil.BGR(t, gray)

	found, discPixels := discContours(t, 120, 120, center, 20)

	s := NewSuppressor(config.Default().Suppression, logger.NewNop())
	result, err := s.Suppress(context.Background(), src, found)
	require.NoError(t, err)
	defer result.Close()

	require.NotNil(t, result.EdgedContour)
	require.NotNil(t, result.Threshed)
	require.NotNil(t, result.Dilated)
	assert.Equal(t, 1, result.EdgedContour.Channels())

	painted := testutil.Count(t, result.EdgedContour, 0)
	assert.InDelta(t, discPixels, painted, float64(discPixels)*0.02)
	assert.Equal(t, painted, testutil.Count(t, result.Threshed, 255))
	assert.Greater(t, testutil.Count(t, result.Dilated, 255), painted)

	// source untouched
	v, err := src.GetUCharAt3(60, 60, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(40), v)
}

func TestSuppressWithoutContoursKeepsBackground(t *testing.T) {
	src := testutil.BGR(t, testutil.Gray(t, 50, 50, 180))

	result, err := NewSuppressor(config.Default().Suppression, logger.NewNop()).Suppress(context.Background(), src, nil)
	require.NoError(t, err)
	defer result.Close()

	assert.Zero(t, testutil.Count(t, result.Dilated, 255))
}

func TestSuppressWithoutDilation(t *testing.T) {
	center := image.Pt(30, 30)
	src := testutil.Gray(t, 60, 60, 200)
	found, _ := discContours(t, 60, 60, center, 10)

	cfg := config.Default().Suppression
	cfg.DilateIterations = 0

	result, err := NewSuppressor(cfg, logger.NewNop()).Suppress(context.Background(), src, found)
	require.NoError(t, err)
	defer result.Close()

	assert.NotSame(t, result.Threshed, result.Dilated)
	assert.Equal(t, testutil.Count(t, result.Threshed, 255), testutil.Count(t, result.Dilated, 255))
}

func TestPaintCopiesSource(t *testing.T) {
	src := testutil.Gray(t, 40, 40, 99)
	found, _ := discContours(t, 40, 40, image.Pt(20, 20), 8)

	painted, err := Paint(src, found)
	require.NoError(t, err)
	defer painted.Close()

	assert.Zero(t, testutil.Count(t, src, 0))
	assert.Positive(t, testutil.Count(t, painted, 0))
}

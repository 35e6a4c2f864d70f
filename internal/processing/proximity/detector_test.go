package proximity

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

func newDetector(dedupe bool) *Detector {
	return NewDetector(config.ProximityConfig{MinDistance: 10, DedupePairs: dedupe}, logger.NewNop())
}

func TestTwoDiscsByGap(t *testing.T) {
	tests := []struct {
		name string
		gap  int
		want bool
	}{
		{"narrow gap", 2, true},
		{"gap below threshold", 5, true},
		{"gap just below threshold", 9, true},
		{"gap at threshold", 10, false},
		{"gap above threshold", 20, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const radius = 20
			d := 2*radius + tt.gap

			mask := testutil.Gray(t, 60+d+radius*2, 80, 0)
			testutil.Disc(mask, image.Pt(50, 40), radius, 255)
			testutil.Disc(mask, image.Pt(50+d, 40), radius, 255)

			found, _ := contours.FindExternal(mask, 0)
			require.Len(t, found, 2)

			detections, err := newDetector(false).Detect(context.Background(), found)
			require.NoError(t, err)

			if tt.want {
				assert.Len(t, detections, 2)
				assert.Equal(t, 1, UniquePairs(detections))
			} else {
				assert.Empty(t, detections)
			}
		})
	}
}

func TestTwoRingsDoubleCount(t *testing.T) {
	// rings span radii 148 to 152, outer edges 5px apart
	const radius, thickness, gap = 150, 4, 5
	outer := radius + thickness/2
	left := image.Pt(outer+10, outer+10)
	right := image.Pt(left.X+2*outer+gap, left.Y)

	mask := testutil.Gray(t, right.X+outer+10, 2*outer+20, 0)
	testutil.Ring(mask, left, radius, thickness, 255)
	testutil.Ring(mask, right, radius, thickness, 255)

	extractor := contours.NewExtractor("vessels", config.Default().Vessels, logger.NewNop())
	extracted, err := extractor.Extract(context.Background(), mask)
	require.NoError(t, err)
	defer extracted.Close()
	found := extracted.Contours
	require.Len(t, found, 2)

	raw, err := newDetector(false).Detect(context.Background(), found)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.Equal(t, 1, UniquePairs(raw))
	assert.NotEqual(t, raw[0].First, raw[1].First)

	deduped, err := newDetector(true).Detect(context.Background(), found)
	require.NoError(t, err)
	require.Len(t, deduped, 1)
	assert.Less(t, deduped[0].First, deduped[0].Second)
}

func TestFirstPointTieBreak(t *testing.T) {
	a := []image.Point{{0, 0}, {50, 50}, {52, 50}}
	b := []image.Point{{100, 100}, {55, 50}}

	anchor, ok := FirstClosePoint(a, b, 10)
	require.True(t, ok)
	assert.Equal(t, image.Pt(50, 50), anchor)
}

func TestAnchorAtFirstPointCounts(t *testing.T) {
	found := []models.Contour{
		{Points: []image.Point{{0, 0}, {100, 100}}},
		{Points: []image.Point{{3, 0}}},
	}

	detections, err := newDetector(false).Detect(context.Background(), found)
	require.NoError(t, err)
	require.Len(t, detections, 2)
	assert.Equal(t, models.Detection{Anchor: image.Pt(0, 0), First: 0, Second: 1}, detections[0])
	assert.Equal(t, models.Detection{Anchor: image.Pt(3, 0), First: 1, Second: 0}, detections[1])
}

func TestDistanceIsStrict(t *testing.T) {
	_, ok := FirstClosePoint([]image.Point{{0, 0}}, []image.Point{{6, 8}}, 10)
	assert.False(t, ok)

	_, ok = FirstClosePoint([]image.Point{{0, 0}}, []image.Point{{6, 7}}, 10)
	assert.True(t, ok)
}

func TestSingleOrNoContour(t *testing.T) {
	for _, found := range [][]models.Contour{nil, {{Points: []image.Point{{1, 1}, {2, 2}}}}} {
		detections, err := newDetector(false).Detect(context.Background(), found)
		require.NoError(t, err)
		assert.Empty(t, detections)
	}
}

func TestDetectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newDetector(false).Detect(ctx, []models.Contour{{}, {}})
	assert.ErrorIs(t, err, context.Canceled)
}

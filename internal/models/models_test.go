package models

import (
	"image"
	"testing"

	"angioscan/internal/opencv/safe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestVerdictFor(t *testing.T) {
	assert.Equal(t, VerdictNoBlockage, VerdictFor(0))
	assert.Equal(t, VerdictBlockage, VerdictFor(1))
	assert.Equal(t, VerdictBlockage, VerdictFor(7))
}

func TestContourBounds(t *testing.T) {
	c := Contour{Points: []image.Point{{3, 4}, {10, 2}, {5, 9}}}
	assert.Equal(t, image.Rect(3, 2, 11, 10), c.Bounds())
	assert.True(t, Contour{}.Bounds().Empty())
}

func TestDetectionPair(t *testing.T) {
	assert.Equal(t, [2]int{1, 4}, Detection{First: 4, Second: 1}.Pair())
	assert.Equal(t, [2]int{0, 2}, Detection{First: 0, Second: 2}.Pair())
}

func TestBlockageResultClose(t *testing.T) {
	annotated, err := safe.NewMat(2, 2, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	step, err := safe.NewMat(2, 2, gocv.MatTypeCV8UC1)
	require.NoError(t, err)

	r := &BlockageResult{Annotated: annotated, Steps: []Step{{Name: "blurred", Image: step}}}
	assert.Same(t, step, r.Step("blurred"))
	assert.Nil(t, r.Step("missing"))

	r.Close()
	assert.False(t, annotated.IsValid())
	assert.False(t, step.IsValid())

	var nilResult *BlockageResult
	assert.NotPanics(t, nilResult.Close)
}

// Package testutil builds synthetic images for tests.
package testutil

import (
	"image"
	"image/color"
	"math"
	"testing"

	"angioscan/internal/opencv/safe"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// Gray returns a w x h single-channel Mat filled with value. The Mat is
// closed when the test ends.
func Gray(tb testing.TB, w, h int, value byte) *safe.Mat {
	tb.Helper()

	data := make([]byte, w*h)
	for i := range data {
		data[i] = value
	}
	mat, err := safe.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, data)
	require.NoError(tb, err)
	tb.Cleanup(mat.Close)
	return mat
}

// BGR converts a gray fixture into a three-channel one.
func BGR(tb testing.TB, gray *safe.Mat) *safe.Mat {
	tb.Helper()

	dst := gocv.NewMat()
	gocv.CvtColor(gray.GetMat(), &dst, gocv.ColorGrayToBGR)
	mat, err := safe.Wrap(dst, "fixture_bgr")
	require.NoError(tb, err)
	tb.Cleanup(mat.Close)
	return mat
}

// Disc fills a circle of the given radius with value.
func Disc(mat *safe.Mat, center image.Point, radius int, value byte) {
	m := mat.GetMat()
	gocv.Circle(&m, center, radius, shade(value), -1)
}

// Ring draws a circle outline of the given thickness.
func Ring(mat *safe.Mat, center image.Point, radius, thickness int, value byte) {
	m := mat.GetMat()
	gocv.Circle(&m, center, radius, shade(value), thickness)
}

// Band sets every pixel whose centre lies at a distance in [inner, outer)
// from center. Unlike Ring, the radial width is exact.
func Band(mat *safe.Mat, center image.Point, inner, outer float64, value byte) {
	m := mat.GetMat()
	for y := 0; y < m.Rows(); y++ {
		for x := 0; x < m.Cols(); x++ {
			dx := float64(x - center.X)
			dy := float64(y - center.Y)
			if d := math.Hypot(dx, dy); d >= inner && d < outer {
				m.SetUCharAt(y, x, value)
			}
		}
	}
}

// Count returns the number of pixels equal to value.
func Count(tb testing.TB, mat *safe.Mat, value byte) int {
	tb.Helper()

	pixels, err := mat.Bytes()
	require.NoError(tb, err)

	n := 0
	for _, p := range pixels {
		if p == value {
			n++
		}
	}
	return n
}

func shade(value byte) color.RGBA {
	return color.RGBA{R: value, G: value, B: value, A: 255}
}

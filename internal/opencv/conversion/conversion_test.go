package conversion

import (
	"image"
	"image/color"
	"testing"

	"angioscan/internal/opencv/safe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestImageToMatRoundTripColour(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.SetRGBA(0, 0, color.RGBA{R: 200, G: 10, B: 30, A: 255})
	src.SetRGBA(1, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	mat, err := ImageToMat(src)
	require.NoError(t, err)
	defer mat.Close()

	require.Equal(t, 3, mat.Channels())
	b, err := mat.GetUCharAt3(0, 0, 0)
	require.NoError(t, err)
	r, err := mat.GetUCharAt3(0, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, uint8(30), b)
	assert.Equal(t, uint8(200), r)

	back, err := MatToImage(mat)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 1, G: 2, B: 3, A: 255}, back.At(1, 0))
}

func TestImageToMatGrayKeepsOneChannel(t *testing.T) {
	src := image.NewGray(image.Rect(5, 5, 8, 7))
	src.SetGray(6, 6, color.Gray{Y: 77})

	mat, err := ImageToMat(src)
	require.NoError(t, err)
	defer mat.Close()

	assert.Equal(t, 1, mat.Channels())
	assert.Equal(t, 3, mat.Cols())
	assert.Equal(t, 2, mat.Rows())
	v, err := mat.GetUCharAt(1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(77), v)
}

func TestGrayAndBGRConversions(t *testing.T) {
	gray, err := safe.NewMatFromBytes(2, 2, gocv.MatTypeCV8UC1, []byte{0, 50, 100, 255})
	require.NoError(t, err)
	defer gray.Close()

	bgr, err := ConvertToBGR(gray)
	require.NoError(t, err)
	defer bgr.Close()
	assert.Equal(t, 3, bgr.Channels())

	again, err := ConvertToGrayscale(bgr)
	require.NoError(t, err)
	defer again.Close()
	assert.Equal(t, 1, again.Channels())

	pixels, err := again.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 50, 100, 255}, pixels)
}

func TestResizeMat(t *testing.T) {
	mat, err := safe.NewMat(10, 20, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	defer mat.Close()

	resized, err := ResizeMat(mat, 50, 40, gocv.InterpolationLinear)
	require.NoError(t, err)
	defer resized.Close()

	assert.Equal(t, 50, resized.Cols())
	assert.Equal(t, 40, resized.Rows())

	_, err = ResizeMat(mat, 0, 40, gocv.InterpolationLinear)
	assert.Error(t, err)
}

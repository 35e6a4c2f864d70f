package conversion

import (
	"fmt"
	"image"
	"image/color"

	"angioscan/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// ConvertToGrayscale converts multi-channel images to single-channel grayscale
func ConvertToGrayscale(src *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "grayscale conversion"); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if src.Channels() == 1 {
		return src.Clone()
	}

	dst := gocv.NewMat()
	srcMat := src.GetMat()

	switch src.Channels() {
	case 3:
		gocv.CvtColor(srcMat, &dst, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(srcMat, &dst, gocv.ColorBGRAToGray)
	default:
		dst.Close()
		return nil, fmt.Errorf("unsupported channel count: %d", src.Channels())
	}

	return safe.Wrap(dst, "gray")
}

// ConvertToBGR returns a three-channel copy suitable for colour annotation.
func ConvertToBGR(src *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "BGR conversion"); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	dst := gocv.NewMat()
	srcMat := src.GetMat()

	switch src.Channels() {
	case 1:
		gocv.CvtColor(srcMat, &dst, gocv.ColorGrayToBGR)
	case 3:
		dst.Close()
		return src.Clone()
	case 4:
		gocv.CvtColor(srcMat, &dst, gocv.ColorBGRAToBGR)
	default:
		dst.Close()
		return nil, fmt.Errorf("unsupported channel count: %d", src.Channels())
	}

	return safe.Wrap(dst, "bgr")
}

// ResizeMat resizes Mat to new dimensions using specified interpolation
func ResizeMat(src *safe.Mat, newWidth, newHeight int, interpolation gocv.InterpolationFlags) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "Mat resizing"); err != nil {
		return nil, err
	}

	if newWidth <= 0 || newHeight <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", newWidth, newHeight)
	}

	dst := gocv.NewMat()
	gocv.Resize(src.GetMat(), &dst, image.Point{X: newWidth, Y: newHeight}, 0, 0, interpolation)

	return safe.Wrap(dst, "resized")
}

// MatToImage converts GoCV Mat to standard Go image
func MatToImage(src *safe.Mat) (image.Image, error) {
	if err := safe.ValidateMatForOperation(src, "Mat to image conversion"); err != nil {
		return nil, err
	}

	rows := src.Rows()
	cols := src.Cols()
	channels := src.Channels()

	pixels, err := src.Bytes()
	if err != nil {
		return nil, fmt.Errorf("pixel access failed: %w", err)
	}

	switch channels {
	case 1:
		img := image.NewGray(image.Rect(0, 0, cols, rows))
		copy(img.Pix, pixels)
		return img, nil
	case 3, 4:
		img := image.NewRGBA(image.Rect(0, 0, cols, rows))
		for i, j := 0, 0; i < len(pixels); i, j = i+channels, j+4 {
			img.Pix[j] = pixels[i+2]
			img.Pix[j+1] = pixels[i+1]
			img.Pix[j+2] = pixels[i]
			if channels == 4 {
				img.Pix[j+3] = pixels[i+3]
			} else {
				img.Pix[j+3] = 255
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported channel count: %d", channels)
	}
}

// ImageToMat converts a Go image into a BGR Mat, or a single-channel Mat
// when the source is *image.Gray.
func ImageToMat(img image.Image) (*safe.Mat, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if err := safe.ValidateDimensions(width, height, "image to Mat conversion"); err != nil {
		return nil, err
	}

	if gray, ok := img.(*image.Gray); ok {
		data := make([]byte, 0, width*height)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			start := gray.PixOffset(bounds.Min.X, y)
			data = append(data, gray.Pix[start:start+width]...)
		}
		return safe.NewMatFromBytes(height, width, gocv.MatTypeCV8UC1, data)
	}

	data := make([]byte, width*height*3)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// Alpha is dropped; X-ray sources are opaque.
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			data[i] = c.B
			data[i+1] = c.G
			data[i+2] = c.R
			i += 3
		}
	}

	return safe.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, data)
}

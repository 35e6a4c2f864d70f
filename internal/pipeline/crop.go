package pipeline

import (
	"fmt"
	"image"
	"math"

	apperrors "angioscan/internal/errors"
)

// DefaultCrop trims floor(width*fraction) columns and floor(height*fraction)
// rows from each side of bounds.
func DefaultCrop(bounds image.Rectangle, fraction float64) image.Rectangle {
	xNew := int(math.Floor(float64(bounds.Dx()) * fraction))
	yNew := int(math.Floor(float64(bounds.Dy()) * fraction))

	return image.Rect(
		bounds.Min.X+xNew,
		bounds.Min.Y+yNew,
		bounds.Max.X-xNew,
		bounds.Max.Y-yNew,
	)
}

// ResolveCrop returns the rectangle to analyse. A nil crop selects the
// default border trim; a supplied crop is clipped to bounds.
func ResolveCrop(bounds image.Rectangle, crop *image.Rectangle, fraction float64) (image.Rectangle, error) {
	var rect image.Rectangle
	if crop == nil {
		rect = DefaultCrop(bounds, fraction)
	} else {
		rect = crop.Canon().Intersect(bounds)
	}

	if rect.Empty() {
		return image.Rectangle{}, apperrors.NewInvalidInputError(
			fmt.Sprintf("crop region is empty for image bounds %v", bounds), nil)
	}
	return rect, nil
}

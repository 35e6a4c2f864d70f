package safe

import (
	"fmt"
)

// maxDimension caps either side of an image; larger inputs are rejected
// before any pixel buffer is allocated.
const maxDimension = 32768

// ValidateMatForOperation requires an open, non-empty Mat.
func ValidateMatForOperation(mat *Mat, operation string) error {
	switch {
	case mat == nil:
		return fmt.Errorf("%s: Mat is nil", operation)
	case !mat.IsValid():
		return fmt.Errorf("%s: Mat %q is closed", operation, mat.Tag())
	case mat.Empty():
		return fmt.Errorf("%s: Mat %q is empty", operation, mat.Tag())
	}
	return ValidateDimensions(mat.Cols(), mat.Rows(), operation)
}

// ValidateGray requires a single-channel 8-bit Mat.
func ValidateGray(mat *Mat, operation string) error {
	if err := ValidateMatForOperation(mat, operation); err != nil {
		return err
	}

	if mat.Channels() != 1 {
		return fmt.Errorf("%s: requires a single-channel image, got %d channels", operation, mat.Channels())
	}

	return nil
}

func ValidateDimensions(width, height int, operation string) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%s: invalid dimensions %dx%d", operation, width, height)
	}

	if width > maxDimension || height > maxDimension {
		return fmt.Errorf("%s: dimensions %dx%d exceed %d pixels per side", operation, width, height, maxDimension)
	}

	return nil
}

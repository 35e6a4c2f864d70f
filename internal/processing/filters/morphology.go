package filters

import (
	"context"
	"fmt"
	"image"

	"angioscan/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// MorphologyFilter smooths a binary mask with an opening or closing pass.
type MorphologyFilter struct {
	op         gocv.MorphType
	shape      gocv.MorphShape
	kernelSize int
}

// NewMorphologyFilter creates a filter using a kernelSize x kernelSize
// elliptical structuring element.
func NewMorphologyFilter(op gocv.MorphType, kernelSize int) *MorphologyFilter {
	return &MorphologyFilter{op: op, shape: gocv.MorphEllipse, kernelSize: kernelSize}
}

func (m *MorphologyFilter) Name() string {
	return "morphology"
}

func (m *MorphologyFilter) ShouldExecute() bool {
	return m.kernelSize > 0
}

func (m *MorphologyFilter) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateGray(input, "morphology"); err != nil {
		return nil, err
	}

	kernel := gocv.GetStructuringElement(m.shape, image.Point{X: m.kernelSize, Y: m.kernelSize})
	defer kernel.Close()

	dst := gocv.NewMat()
	gocv.MorphologyEx(input.GetMat(), &dst, m.op, kernel)

	return safe.Wrap(dst, "morphology")
}

// DilateFilter grows foreground regions with a rectangular element, the
// OpenCV default when no kernel is supplied.
type DilateFilter struct {
	kernelSize int
	iterations int
}

func NewDilateFilter(kernelSize, iterations int) *DilateFilter {
	return &DilateFilter{kernelSize: kernelSize, iterations: iterations}
}

func (d *DilateFilter) Name() string {
	return "dilated"
}

func (d *DilateFilter) ShouldExecute() bool {
	return d.iterations > 0 && d.kernelSize > 0
}

func (d *DilateFilter) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateGray(input, "dilation"); err != nil {
		return nil, err
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: d.kernelSize, Y: d.kernelSize})
	defer kernel.Close()

	src := input.GetMat()
	current := src.Clone()
	for i := 0; i < d.iterations; i++ {
		select {
		case <-ctx.Done():
			current.Close()
			return nil, ctx.Err()
		default:
		}

		next := gocv.NewMat()
		gocv.Dilate(current, &next, kernel)
		current.Close()
		current = next
	}

	if current.Empty() {
		current.Close()
		return nil, fmt.Errorf("dilation produced an empty Mat")
	}

	return safe.Wrap(current, "dilated")
}

type MedianFilter struct {
	kernelSize int
}

func NewMedianFilter(kernelSize int) *MedianFilter {
	return &MedianFilter{kernelSize: kernelSize}
}

func (m *MedianFilter) Name() string {
	return "blurred"
}

// ShouldExecute skips the blur for kernel sizes 0 and 1.
func (m *MedianFilter) ShouldExecute() bool {
	return m.kernelSize > 1
}

func (m *MedianFilter) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if m.kernelSize%2 == 0 {
		return nil, fmt.Errorf("median kernel must be odd, got %d", m.kernelSize)
	}

	dst := gocv.NewMat()
	gocv.MedianBlur(input.GetMat(), &dst, m.kernelSize)

	return safe.Wrap(dst, "blurred")
}

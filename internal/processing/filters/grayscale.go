package filters

import (
	"context"

	"angioscan/internal/opencv/conversion"
	"angioscan/internal/opencv/safe"
)

// GrayscaleConverter converts images to grayscale
type GrayscaleConverter struct {
	name string
}

// NewGrayscaleConverter creates a converter whose output is labelled name
func NewGrayscaleConverter(name string) *GrayscaleConverter {
	return &GrayscaleConverter{name: name}
}

// Name returns the filter name
func (g *GrayscaleConverter) Name() string {
	return g.name
}

// ShouldExecute determines if the filter should run
func (g *GrayscaleConverter) ShouldExecute() bool {
	return true
}

// Apply performs the grayscale conversion; single-channel input is cloned
func (g *GrayscaleConverter) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return conversion.ConvertToGrayscale(input)
}

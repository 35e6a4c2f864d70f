package filters

import (
	"context"

	"angioscan/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// AdaptiveThresholdFilter marks pixels darker than their local block mean
// minus a constant as foreground (255).
type AdaptiveThresholdFilter struct {
	blockDivisor int
	constant     float64
	enabled      bool
}

func NewAdaptiveThresholdFilter(blockDivisor int, constant float64, enabled bool) *AdaptiveThresholdFilter {
	return &AdaptiveThresholdFilter{blockDivisor: blockDivisor, constant: constant, enabled: enabled}
}

func (a *AdaptiveThresholdFilter) Name() string {
	return "adaptive threshold"
}

func (a *AdaptiveThresholdFilter) ShouldExecute() bool {
	return a.enabled
}

func (a *AdaptiveThresholdFilter) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateGray(input, "adaptive threshold"); err != nil {
		return nil, err
	}

	blockSize := BlockSize(input.Rows(), a.blockDivisor)

	dst := gocv.NewMat()
	gocv.AdaptiveThreshold(input.GetMat(), &dst, 255, gocv.AdaptiveThresholdMean,
		gocv.ThresholdBinaryInv, blockSize, float32(a.constant))

	return safe.Wrap(dst, "adaptive_threshold")
}

// BlockSize derives the adaptive window from the image height: one
// divisor-th of the height, bumped to the next odd value and never below 3.
func BlockSize(height, divisor int) int {
	if divisor < 1 {
		divisor = 1
	}

	size := height / divisor
	if size%2 == 0 {
		size++
	}
	if size < 3 {
		size = 3
	}
	return size
}

// ZeroMaskFilter marks exactly-zero pixels as foreground (255) and
// everything else as background.
type ZeroMaskFilter struct{}

func NewZeroMaskFilter() *ZeroMaskFilter {
	return &ZeroMaskFilter{}
}

func (z *ZeroMaskFilter) Name() string {
	return "threshed edged contour"
}

func (z *ZeroMaskFilter) ShouldExecute() bool {
	return true
}

func (z *ZeroMaskFilter) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateGray(input, "zero mask"); err != nil {
		return nil, err
	}

	dst := gocv.NewMat()
	gocv.Threshold(input.GetMat(), &dst, 0, 255, gocv.ThresholdBinaryInv)

	return safe.Wrap(dst, "zero_mask")
}

package contrast

import (
	"context"
	"fmt"
	"math"

	apperrors "angioscan/internal/errors"
	"angioscan/internal/logger"
	"angioscan/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const histSize = 256

// Stats describes the linear stretch applied by Normalize.
type Stats struct {
	MinGray    int
	MaxGray    int
	Alpha      float64
	Beta       float64
	Degenerate bool
}

// Warning returns the soft error describing a collapsed gray range, or nil.
func (s Stats) Warning() error {
	if !s.Degenerate {
		return nil
	}
	return apperrors.NewDegenerateHistogramError(s.MinGray, s.MaxGray)
}

// Normalizer stretches the gray range left after clipping both histogram
// tails onto 0..255.
type Normalizer struct {
	clipHistPercent float64
	logger          logger.Logger
}

func NewNormalizer(clipHistPercent float64, log logger.Logger) *Normalizer {
	return &Normalizer{clipHistPercent: clipHistPercent, logger: log}
}

func (n *Normalizer) Name() string {
	return "brightness corrected"
}

// Normalize returns a new stretched image. When the clipped range is empty
// the identity transform is applied and Stats.Degenerate is set.
func (n *Normalizer) Normalize(ctx context.Context, gray *safe.Mat) (*safe.Mat, Stats, error) {
	select {
	case <-ctx.Done():
		return nil, Stats{}, ctx.Err()
	default:
	}

	if err := safe.ValidateGray(gray, "contrast normalization"); err != nil {
		return nil, Stats{}, err
	}

	hist, err := histogram(gray)
	if err != nil {
		return nil, Stats{}, err
	}

	stats := ComputeStretch(hist, n.clipHistPercent)

	lut := stats.lookupTable()
	table, err := safe.NewMatFromBytes(1, histSize, gocv.MatTypeCV8UC1, lut[:])
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to build lookup table: %w", err)
	}
	defer table.Close()

	dst := gocv.NewMat()
	gocv.LUT(gray.GetMat(), table.GetMat(), &dst)

	out, err := safe.Wrap(dst, "brightness_corrected")
	if err != nil {
		return nil, Stats{}, err
	}

	n.logger.Debug("ContrastNormalizer", "contrast stretched", map[string]interface{}{
		"min_gray":   stats.MinGray,
		"max_gray":   stats.MaxGray,
		"alpha":      stats.Alpha,
		"beta":       stats.Beta,
		"degenerate": stats.Degenerate,
	})

	return out, stats, nil
}

// ComputeStretch derives the clipped gray range of hist and the gain and
// offset that map it onto 0..255.
func ComputeStretch(hist [histSize]float64, clipHistPercent float64) Stats {
	var accumulator [histSize]float64
	accumulator[0] = hist[0]
	for i := 1; i < histSize; i++ {
		accumulator[i] = accumulator[i-1] + hist[i]
	}

	total := accumulator[histSize-1]
	clip := clipHistPercent * total / 100 / 2

	minGray := 0
	for minGray < histSize-1 && accumulator[minGray] < clip {
		minGray++
	}

	maxGray := histSize - 1
	for maxGray > 0 && accumulator[maxGray] >= total-clip {
		maxGray--
	}

	if maxGray <= minGray {
		return Stats{MinGray: minGray, MaxGray: maxGray, Alpha: 1, Beta: 0, Degenerate: true}
	}

	alpha := 255 / float64(maxGray-minGray)
	return Stats{
		MinGray: minGray,
		MaxGray: maxGray,
		Alpha:   alpha,
		Beta:    -float64(minGray) * alpha,
	}
}

func (s Stats) lookupTable() [histSize]byte {
	var lut [histSize]byte
	for v := range lut {
		scaled := math.Round(s.Alpha*float64(v) + s.Beta)
		lut[v] = byte(math.Max(0, math.Min(255, scaled)))
	}
	return lut
}

func histogram(gray *safe.Mat) ([histSize]float64, error) {
	var result [histSize]float64

	hist := gocv.NewMat()
	defer hist.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	err := gocv.CalcHist([]gocv.Mat{gray.GetMat()}, []int{0}, mask, &hist, []int{histSize}, []float64{0, histSize}, false)
	if err != nil {
		return result, fmt.Errorf("histogram calculation failed: %w", err)
	}

	for i := 0; i < histSize; i++ {
		result[i] = float64(hist.GetFloatAt(i, 0))
	}
	return result, nil
}

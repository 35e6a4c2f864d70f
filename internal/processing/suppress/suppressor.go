package suppress

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"angioscan/internal/config"
	"angioscan/internal/logger"
	"angioscan/internal/models"
	"angioscan/internal/opencv/safe"
	"angioscan/internal/processing/chain"
	"angioscan/internal/processing/filters"

	"gocv.io/x/gocv"
)

// Suppression holds the images produced while erasing first-pass contours.
type Suppression struct {
	// EdgedContour is the grayscale source with every contour painted black.
	EdgedContour *safe.Mat
	// Threshed marks the painted (zero) pixels as foreground.
	Threshed *safe.Mat
	// Dilated is Threshed grown to bridge nearby fragments; it feeds the
	// second extraction pass.
	Dilated *safe.Mat
}

func (s *Suppression) Close() {
	for _, m := range []*safe.Mat{s.EdgedContour, s.Threshed, s.Dilated} {
		if m != nil {
			m.Close()
		}
	}
}

type Suppressor struct {
	chain  *chain.ProcessingChain
	logger logger.Logger
}

func NewSuppressor(cfg config.SuppressionConfig, log logger.Logger) *Suppressor {
	return &Suppressor{
		chain: chain.NewProcessingChain(
			filters.NewGrayscaleConverter("edged contour"),
			filters.NewZeroMaskFilter(),
			filters.NewDilateFilter(cfg.KernelSize, cfg.DilateIterations),
		),
		logger: log,
	}
}

// Suppress paints contours solid black on a copy of src and re-binarizes
// the result. src may be gray or BGR and is not modified.
func (s *Suppressor) Suppress(ctx context.Context, src *safe.Mat, contours []models.Contour) (*Suppression, error) {
	if err := safe.ValidateMatForOperation(src, "contour suppression"); err != nil {
		return nil, err
	}

	painted, err := Paint(src, contours)
	if err != nil {
		return nil, err
	}
	defer painted.Close()

	final, steps, err := s.chain.Execute(ctx, painted, true)
	if err != nil {
		return nil, fmt.Errorf("suppression: %w", err)
	}

	result := &Suppression{}
	for _, step := range steps {
		switch step.Name {
		case "edged contour":
			result.EdgedContour = step.Image
		case "threshed edged contour":
			result.Threshed = step.Image
		default:
			step.Image.Close()
		}
	}

	// With dilation disabled the zero mask is the final image.
	if result.Threshed == nil {
		result.Threshed = final
		result.Dilated, err = final.Clone()
		if err != nil {
			result.Close()
			return nil, err
		}
	} else {
		result.Dilated = final
	}

	s.logger.Debug("NoiseSuppressor", "contours suppressed", map[string]interface{}{
		"painted":    len(contours),
		"foreground": gocv.CountNonZero(result.Dilated.GetMat()),
	})

	return result, nil
}

// Paint returns a copy of src with every contour filled black.
func Paint(src *safe.Mat, contours []models.Contour) (*safe.Mat, error) {
	painted, err := src.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to copy source: %w", err)
	}
	if len(contours) == 0 {
		return painted, nil
	}

	points := make([][]image.Point, 0, len(contours))
	for _, c := range contours {
		points = append(points, c.Points)
	}
	pv := gocv.NewPointsVectorFromPoints(points)
	defer pv.Close()

	dst := painted.GetMat()
	gocv.DrawContours(&dst, pv, -1, color.RGBA{A: 255}, -1)

	return painted, nil
}

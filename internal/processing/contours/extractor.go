package contours

import (
	"context"
	"fmt"

	"angioscan/internal/config"
	apperrors "angioscan/internal/errors"
	"angioscan/internal/logger"
	"angioscan/internal/models"
	"angioscan/internal/opencv/safe"
	"angioscan/internal/processing/chain"
	"angioscan/internal/processing/filters"

	"gocv.io/x/gocv"
)

const morphKernelSize = 3

// Extraction holds the outputs of one extractor pass. Blurred and
// Thresholded are nil when the corresponding step was disabled.
type Extraction struct {
	Blurred     *safe.Mat
	Thresholded *safe.Mat
	Mask        *safe.Mat
	Contours    []models.Contour
	Discarded   int
}

func (e *Extraction) Close() {
	for _, m := range []*safe.Mat{e.Blurred, e.Thresholded, e.Mask} {
		if m != nil {
			m.Close()
		}
	}
}

// Extractor blurs, adaptively thresholds and smooths a grayscale image,
// then returns the external contours whose area exceeds the configured
// minimum.
type Extractor struct {
	pass   string
	cfg    config.ExtractionConfig
	chain  *chain.ProcessingChain
	logger logger.Logger
}

func NewExtractor(pass string, cfg config.ExtractionConfig, log logger.Logger) *Extractor {
	op := gocv.MorphOpen
	if cfg.MorphOp == config.MorphClose {
		op = gocv.MorphClose
	}

	return &Extractor{
		pass: pass,
		cfg:  cfg,
		chain: chain.NewProcessingChain(
			filters.NewMedianFilter(cfg.BlurKernel),
			filters.NewAdaptiveThresholdFilter(cfg.BlockDivisor, cfg.AdaptiveConstant, cfg.Binarize),
			filters.NewMorphologyFilter(op, morphKernelSize),
		),
		logger: log,
	}
}

func (e *Extractor) Pass() string {
	return e.pass
}

// Extract runs the pass on src, which must be single-channel. The returned
// Extraction owns its Mats. A pass that keeps no contour is not an error;
// callers inspect len(Contours).
func (e *Extractor) Extract(ctx context.Context, src *safe.Mat) (*Extraction, error) {
	if err := safe.ValidateGray(src, "contour extraction"); err != nil {
		return nil, err
	}

	mask, steps, err := e.chain.Execute(ctx, src, true)
	if err != nil {
		return nil, fmt.Errorf("%s pass: %w", e.pass, err)
	}

	result := &Extraction{Mask: mask}
	for _, step := range steps {
		switch step.Name {
		case "blurred":
			result.Blurred = step.Image
		case "adaptive threshold":
			result.Thresholded = step.Image
		default:
			step.Image.Close()
		}
	}

	result.Contours, result.Discarded = FindExternal(mask, e.cfg.MinContourArea)

	e.logger.Debug("ContourExtractor", "contours extracted", map[string]interface{}{
		"pass":       e.pass,
		"steps":      e.chain.GetStepNames(),
		"block_size": filters.BlockSize(src.Rows(), e.cfg.BlockDivisor),
		"kept":       len(result.Contours),
		"discarded":  result.Discarded,
		"min_area":   e.cfg.MinContourArea,
	})

	return result, nil
}

// EmptyWarning returns the soft error for a pass that kept no contour.
func (e *Extractor) EmptyWarning() error {
	return apperrors.NewEmptyContourSetError(e.pass, e.cfg.MinContourArea)
}

// FindExternal returns the outer contours of the foreground of mask whose
// area is strictly greater than minArea, in the order OpenCV reports them,
// along with the number of contours dropped.
func FindExternal(mask *safe.Mat, minArea float64) ([]models.Contour, int) {
	found := gocv.FindContours(mask.GetMat(), gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()

	kept := make([]models.Contour, 0, found.Size())
	discarded := 0
	for i := 0; i < found.Size(); i++ {
		pv := found.At(i)
		area := gocv.ContourArea(pv)
		if area <= minArea {
			discarded++
			continue
		}
		kept = append(kept, models.Contour{Points: pv.ToPoints(), Area: area})
	}

	return kept, discarded
}

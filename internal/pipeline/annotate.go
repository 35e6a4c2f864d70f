package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"angioscan/internal/config"
	"angioscan/internal/models"
	"angioscan/internal/opencv/safe"

	"gocv.io/x/gocv"
)

var labelOrigin = image.Pt(10, 50)

// Annotator draws detection markers and the verdict label.
type Annotator struct {
	cfg      config.AnnotationConfig
	blockage color.RGBA
	clean    color.RGBA
}

func NewAnnotator(cfg config.AnnotationConfig) (*Annotator, error) {
	blockage, err := config.ParseColor(cfg.BlockageColor)
	if err != nil {
		return nil, fmt.Errorf("blockage colour: %w", err)
	}
	clean, err := config.ParseColor(cfg.ClearColor)
	if err != nil {
		return nil, fmt.Errorf("clear colour: %w", err)
	}

	return &Annotator{cfg: cfg, blockage: blockage, clean: clean}, nil
}

// Annotate returns a copy of src with a marker on every detection anchor
// and the verdict written in the top-left corner.
func (a *Annotator) Annotate(src *safe.Mat, detections []models.Detection, verdict models.Verdict) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "annotation"); err != nil {
		return nil, err
	}

	out, err := src.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to copy annotation base: %w", err)
	}

	canvas := out.GetMat()
	for _, det := range detections {
		gocv.Circle(&canvas, det.Anchor, a.cfg.MarkerRadius, a.blockage, a.cfg.MarkerThickness)
	}

	labelColor := a.clean
	if verdict == models.VerdictBlockage {
		labelColor = a.blockage
	}
	gocv.PutTextWithParams(&canvas, string(verdict), labelOrigin, gocv.FontHersheySimplex,
		a.cfg.LabelFontScale, labelColor, a.cfg.LabelThickness, gocv.LineAA, false)

	return out, nil
}

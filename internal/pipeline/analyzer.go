package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"angioscan/internal/config"
	apperrors "angioscan/internal/errors"
	"angioscan/internal/logger"
	"angioscan/internal/models"
	"angioscan/internal/opencv/conversion"
	"angioscan/internal/opencv/safe"
	"angioscan/internal/processing/contours"
	"angioscan/internal/processing/contrast"
	"angioscan/internal/processing/proximity"
	"angioscan/internal/processing/suppress"
	"angioscan/internal/timing"
)

// Step names, in the order they appear in BlockageResult.Steps.
const (
	StepBrightness   = "brightness corrected"
	StepBlurred      = "blurred"
	StepThreshold    = "adaptive threshold"
	StepEdgedContour = "edged contour"
	StepThreshed     = "threshed edged contour"
	StepDilated      = "dilated"
	StepOutput       = "output image"
)

// Analyzer runs the blockage detection pipeline on one image at a time.
// It holds no per-image state and may be shared between goroutines.
type Analyzer struct {
	cfg        *config.Config
	normalizer *contrast.Normalizer
	edges      *contours.Extractor
	suppressor *suppress.Suppressor
	vessels    *contours.Extractor
	detector   *proximity.Detector
	annotator  *Annotator
	logger     logger.Logger
}

func NewAnalyzer(cfg *config.Config, log logger.Logger) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	annotator, err := NewAnnotator(cfg.Annotation)
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		cfg:        cfg,
		normalizer: contrast.NewNormalizer(cfg.Contrast.ClipHistPercent, log),
		edges:      contours.NewExtractor("edges", cfg.Edges, log),
		suppressor: suppress.NewSuppressor(cfg.Suppression, log),
		vessels:    contours.NewExtractor("vessels", cfg.Vessels, log),
		detector:   proximity.NewDetector(cfg.Proximity, log),
		annotator:  annotator,
		logger:     log,
	}, nil
}

// analysis carries the state of one Analyze call.
type analysis struct {
	ctx     context.Context
	tracker *timing.Tracker
	result  *models.BlockageResult
}

// stage runs fn after checking for cancellation and records its duration.
func (a *analysis) stage(name string, fn func(ctx context.Context) error) error {
	select {
	case <-a.ctx.Done():
		return apperrors.NewCancelledError(name, a.ctx.Err())
	default:
	}

	ctx := a.tracker.StartTiming(a.ctx, name)
	err := fn(ctx)
	a.tracker.EndTiming(ctx)
	return err
}

func (a *analysis) keep(name string, mat *safe.Mat) {
	if mat != nil {
		a.result.Steps = append(a.result.Steps, models.Step{Name: name, Image: mat})
	}
}

// Analyze crops src, runs every stage and returns the annotated result. A
// nil crop selects the default border trim. src is not modified. The
// caller owns the result and must Close it.
func (an *Analyzer) Analyze(ctx context.Context, src *safe.Mat, crop *image.Rectangle) (*models.BlockageResult, error) {
	if err := safe.ValidateMatForOperation(src, "analysis"); err != nil {
		return nil, apperrors.NewInvalidInputError("unusable input image", err)
	}

	rect, err := ResolveCrop(src.Bounds(), crop, an.cfg.Crop.BorderFraction)
	if err != nil {
		return nil, err
	}

	run := &analysis{
		ctx:     ctx,
		tracker: timing.NewTracker(),
		result:  &models.BlockageResult{Crop: rect},
	}

	if err := an.analyze(run, src, rect); err != nil {
		run.result.Close()
		return nil, err
	}

	for _, r := range run.tracker.Records() {
		run.result.Timings = append(run.result.Timings, models.StageTiming{Stage: r.Operation, Duration: r.Duration})
	}

	an.logger.Debug("Analyzer", "analysis completed", map[string]interface{}{
		"crop":          rect.String(),
		"detections":    run.result.DetectionCount,
		"sites":         run.result.SiteCount,
		"verdict":       string(run.result.Verdict),
		"warnings":      len(run.result.Warnings),
		"total_time_ms": run.tracker.Total().Milliseconds(),
	})

	return run.result, nil
}

func (an *Analyzer) analyze(run *analysis, src *safe.Mat, rect image.Rectangle) error {
	result := run.result

	cropped, err := src.CropClone(rect)
	if err != nil {
		return apperrors.NewInvalidInputError("failed to crop input", err)
	}
	defer cropped.Close()

	base, err := conversion.ConvertToBGR(cropped)
	if err != nil {
		return apperrors.NewProcessingError("colour conversion failed", err)
	}
	defer base.Close()

	var normalized *safe.Mat
	err = run.stage("normalize", func(ctx context.Context) error {
		gray, err := conversion.ConvertToGrayscale(base)
		if err != nil {
			return err
		}
		defer gray.Close()

		out, stats, err := an.normalizer.Normalize(ctx, gray)
		if err != nil {
			return err
		}
		normalized = out
		if warning := stats.Warning(); warning != nil {
			result.Warnings = append(result.Warnings, warning)
			an.logger.Warning("Analyzer", "flat histogram, contrast left unchanged", map[string]interface{}{
				"min_gray": stats.MinGray,
				"max_gray": stats.MaxGray,
			})
		}
		return nil
	})
	if err != nil {
		return wrapStage("contrast normalization", err)
	}
	run.keep(StepBrightness, normalized)

	var edges *contours.Extraction
	err = run.stage("extract_edges", func(ctx context.Context) error {
		edges, err = an.edges.Extract(ctx, normalized)
		return err
	})
	if err != nil {
		return wrapStage("edge extraction", err)
	}
	defer edges.Close()
	run.keep(StepBlurred, take(&edges.Blurred))
	run.keep(StepThreshold, take(&edges.Thresholded))
	an.warnIfEmpty(result, an.edges, len(edges.Contours))

	var suppressed *suppress.Suppression
	err = run.stage("suppress", func(ctx context.Context) error {
		suppressed, err = an.suppressor.Suppress(ctx, base, edges.Contours)
		return err
	})
	if err != nil {
		return wrapStage("noise suppression", err)
	}
	defer suppressed.Close()
	run.keep(StepEdgedContour, take(&suppressed.EdgedContour))
	run.keep(StepThreshed, take(&suppressed.Threshed))

	var vessels *contours.Extraction
	err = run.stage("extract_vessels", func(ctx context.Context) error {
		vessels, err = an.vessels.Extract(ctx, suppressed.Dilated)
		return err
	})
	if err != nil {
		return wrapStage("vessel extraction", err)
	}
	defer vessels.Close()
	run.keep(StepDilated, take(&suppressed.Dilated))
	an.warnIfEmpty(result, an.vessels, len(vessels.Contours))

	err = run.stage("detect", func(ctx context.Context) error {
		result.Detections, err = an.detector.Detect(ctx, vessels.Contours)
		return err
	})
	if err != nil {
		return wrapStage("proximity detection", err)
	}
	result.DetectionCount = len(result.Detections)
	result.SiteCount = proximity.UniquePairs(result.Detections)
	result.Verdict = models.VerdictFor(result.DetectionCount)

	err = run.stage("annotate", func(context.Context) error {
		result.Annotated, err = an.annotator.Annotate(base, result.Detections, result.Verdict)
		return err
	})
	if err != nil {
		return wrapStage("annotation", err)
	}

	output, err := result.Annotated.Clone()
	if err != nil {
		return apperrors.NewProcessingError("failed to copy annotated image", err)
	}
	run.keep(StepOutput, output)

	return nil
}

func (an *Analyzer) warnIfEmpty(result *models.BlockageResult, ex *contours.Extractor, count int) {
	if count > 0 {
		return
	}
	warning := ex.EmptyWarning()
	result.Warnings = append(result.Warnings, warning)
	an.logger.Debug("Analyzer", "no contour survived filtering", map[string]interface{}{
		"pass": ex.Pass(),
	})
}

// take moves ownership of *m to the caller.
func take(m **safe.Mat) *safe.Mat {
	out := *m
	*m = nil
	return out
}

func wrapStage(stage string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewCancelledError(stage, err)
	}
	return apperrors.NewProcessingError(stage+" failed", err)
}

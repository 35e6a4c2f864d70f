package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"angioscan/internal/config"
	apperrors "angioscan/internal/errors"
	"angioscan/internal/logger"
	"angioscan/internal/models"
	"angioscan/internal/opencv/conversion"
	"angioscan/internal/opencv/safe"
	"angioscan/internal/timing"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// SkippedImage is an input that could not be analysed.
type SkippedImage struct {
	Path string
	Err  error
}

// ImageSummary describes one analysed input.
type ImageSummary struct {
	Path           string
	Verdict        models.Verdict
	DetectionCount int
	SiteCount      int
	Outputs        OutputPaths
	Warnings       int
	Duration       time.Duration
}

// BatchReport summarizes a directory run. Results and Skipped are sorted by
// path; StageAverages follow pipeline order.
type BatchReport struct {
	Processed     int
	Flagged       int
	Results       []ImageSummary
	Skipped       []SkippedImage
	StageAverages []models.StageTiming
}

// Runner analyses every image in a directory and writes the outputs.
type Runner struct {
	cfg      *config.Config
	analyzer *Analyzer
	loader   ImageLoader
	saver    ImageSaver
	selector RegionSelector
	viewer   ResultViewer
	stages   *timing.Tracker
	logger   logger.Logger
}

func NewRunner(cfg *config.Config, analyzer *Analyzer, loader ImageLoader, saver ImageSaver, log logger.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		analyzer: analyzer,
		loader:   loader,
		saver:    saver,
		stages:   timing.NewTracker(),
		logger:   log,
	}
}

// SetRegionSelector enables interactive region selection for every image.
func (r *Runner) SetRegionSelector(selector RegionSelector) {
	r.selector = selector
}

// SetResultViewer shows every result before moving to the next image.
func (r *Runner) SetResultViewer(viewer ResultViewer) {
	r.viewer = viewer
}

// Workers reports the effective concurrency. Interactive collaborators
// force sequential processing.
func (r *Runner) Workers() int {
	if r.selector != nil || r.viewer != nil {
		return 1
	}
	if r.cfg.Batch.Workers < 1 {
		return 1
	}
	return r.cfg.Batch.Workers
}

// ListImages returns the regular, non-hidden files of dir in name order.
func ListImages(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("cannot read input %s", dir), err)
	}
	if !info.IsDir() {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("input %s is a file, not a directory", dir), nil)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("cannot list %s", dir), err)
	}

	var paths []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") || !entry.Type().IsRegular() {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	if len(paths) == 0 {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("no images found in %s", dir), nil)
	}
	return paths, nil
}

// Run analyses every image of inputDir. A missing, non-directory or empty
// input is fatal; per-image failures are logged and reported as skipped.
func (r *Runner) Run(ctx context.Context, inputDir, outputDir string) (*BatchReport, error) {
	paths, err := ListImages(inputDir)
	if err != nil {
		return nil, err
	}

	workers := r.Workers()
	r.logger.Info("BatchRunner", "batch started", map[string]interface{}{
		"input":   inputDir,
		"output":  outputDir,
		"images":  len(paths),
		"workers": workers,
	})

	plans, collisions := planOutputs(paths, outputDir, r.cfg.Output.DefaultExtension)
	for _, c := range collisions {
		r.logger.Warning("BatchRunner", "output path collision, image skipped", map[string]interface{}{
			"image": c.Path,
			"error": c.Err.Error(),
		})
	}

	report := &BatchReport{Skipped: collisions}
	var mu sync.Mutex
	r.stages.Reset("")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, plan := range plans {
		if gctx.Err() != nil {
			break
		}

		path := plan.input
		g.Go(func() error {
			summary, err := r.processOne(gctx, path, plan.output)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if apperrors.IsType(err, apperrors.ErrorTypeCancelled) || errors.Is(err, context.Canceled) {
					return err
				}
				r.logger.Error("BatchRunner", err, map[string]interface{}{
					"image": path,
				})
				report.Skipped = append(report.Skipped, SkippedImage{Path: path, Err: err})
				return nil
			}

			report.Processed++
			if summary.DetectionCount > 0 {
				report.Flagged++
			}
			report.Results = append(report.Results, summary)
			return nil
		})
	}

	err = g.Wait()

	sort.Slice(report.Results, func(i, j int) bool { return report.Results[i].Path < report.Results[j].Path })
	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i].Path < report.Skipped[j].Path })
	report.StageAverages = r.stageAverages()

	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return report, apperrors.NewCancelledError("batch completion", err)
	}
	if report.Processed == 0 {
		return report, apperrors.NewInvalidInputError(
			fmt.Sprintf("no decodable images in %s (%d files skipped)", inputDir, len(report.Skipped)), nil)
	}

	fields := map[string]interface{}{
		"processed": report.Processed,
		"flagged":   report.Flagged,
		"skipped":   len(report.Skipped),
	}
	for _, avg := range report.StageAverages {
		fields["avg_"+avg.Stage+"_ms"] = avg.Duration.Milliseconds()
	}
	r.logger.Info("BatchRunner", "batch completed", fields)

	return report, nil
}

type outputPlan struct {
	input  string
	output string
}

// planOutputs maps every input to its output path inside outputDir. An
// input whose annotated image or panel would land on a file already
// claimed by an earlier input is skipped instead of overwriting it.
func planOutputs(paths []string, outputDir, defaultExt string) ([]outputPlan, []SkippedImage) {
	claimed := make(map[string]string)
	plans := make([]outputPlan, 0, len(paths))
	var skipped []SkippedImage

	for _, path := range paths {
		output := filepath.Join(outputDir, filepath.Base(path))
		derived := DeriveOutputPaths(output, defaultExt)

		owner := claimed[derived.Image]
		if owner == "" {
			owner = claimed[derived.Panel]
		}
		if owner != "" {
			skipped = append(skipped, SkippedImage{
				Path: path,
				Err: apperrors.NewInvalidInputError(
					fmt.Sprintf("outputs of %s would overwrite those of %s", filepath.Base(path), filepath.Base(owner)), nil),
			})
			continue
		}

		claimed[derived.Image] = path
		claimed[derived.Panel] = path
		plans = append(plans, outputPlan{input: path, output: output})
	}

	return plans, skipped
}

func (r *Runner) stageAverages() []models.StageTiming {
	ops := r.stages.Operations()
	averages := make([]models.StageTiming, 0, len(ops))
	for _, op := range ops {
		averages = append(averages, models.StageTiming{Stage: op, Duration: r.stages.GetAverageTime(op)})
	}
	return averages
}

func (r *Runner) processOne(ctx context.Context, path, outputPath string) (ImageSummary, error) {
	start := time.Now()
	name := filepath.Base(path)

	data, err := r.loader.LoadFromPath(path)
	if err != nil {
		return ImageSummary{}, err
	}
	defer data.Close()

	src, crop, err := r.regionOfInterest(ctx, name, data.Mat)
	if err != nil {
		return ImageSummary{}, err
	}
	if src != data.Mat {
		defer src.Close()
	}

	result, err := r.analyzer.Analyze(ctx, src, crop)
	if err != nil {
		return ImageSummary{}, err
	}
	defer result.Close()

	for _, t := range result.Timings {
		r.stages.Add(t.Stage, t.Duration)
	}

	outputs, err := r.saver.SaveResult(result, outputPath)
	if err != nil {
		return ImageSummary{}, apperrors.NewProcessingError("failed to save result", err)
	}

	if r.viewer != nil {
		if err := r.viewer.ShowResult(ctx, name, result); err != nil {
			return ImageSummary{}, err
		}
	}

	summary := ImageSummary{
		Path:           path,
		Verdict:        result.Verdict,
		DetectionCount: result.DetectionCount,
		SiteCount:      result.SiteCount,
		Outputs:        outputs,
		Warnings:       len(result.Warnings),
		Duration:       time.Since(start),
	}

	r.logger.Info("BatchRunner", "image analysed", map[string]interface{}{
		"image":       name,
		"verdict":     string(summary.Verdict),
		"detections":  summary.DetectionCount,
		"sites":       summary.SiteCount,
		"output":      outputs.Image,
		"duration_ms": summary.Duration.Milliseconds(),
	})

	return summary, nil
}

// regionOfInterest returns the image to analyse and the crop to apply. A
// user-selected region is cut out and resized to the configured ROI size,
// then analysed whole; otherwise the default border trim applies.
func (r *Runner) regionOfInterest(ctx context.Context, name string, img *safe.Mat) (*safe.Mat, *image.Rectangle, error) {
	if r.selector == nil {
		return img, nil, nil
	}

	rect, ok, err := r.selector.SelectRegion(ctx, name, img)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		r.logger.Debug("BatchRunner", "no region selected, using border trim", map[string]interface{}{
			"image": name,
		})
		return img, nil, nil
	}

	rect = rect.Canon().Intersect(img.Bounds())
	if rect.Empty() {
		return nil, nil, apperrors.NewInvalidInputError("selected region lies outside the image", nil)
	}

	region, err := img.CropClone(rect)
	if err != nil {
		return nil, nil, apperrors.NewInvalidInputError("failed to crop selected region", err)
	}

	size := r.cfg.Crop.ROISize
	if size <= 0 {
		full := region.Bounds()
		return region, &full, nil
	}

	resized, err := conversion.ResizeMat(region, size, size, gocv.InterpolationLinear)
	region.Close()
	if err != nil {
		return nil, nil, apperrors.NewProcessingError("failed to resize selected region", err)
	}

	full := resized.Bounds()
	r.logger.Debug("BatchRunner", "region selected", map[string]interface{}{
		"image":  name,
		"region": rect.String(),
		"size":   size,
	})
	return resized, &full, nil
}

package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"angioscan/internal/config"
	apperrors "angioscan/internal/errors"
	"angioscan/internal/logger"
	"angioscan/internal/models"
	"angioscan/internal/opencv/safe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

type fakeSelector struct {
	rect image.Rectangle
	ok   bool
}

func (f fakeSelector) SelectRegion(context.Context, string, *safe.Mat) (image.Rectangle, bool, error) {
	return f.rect, f.ok, nil
}

type countingViewer struct {
	calls atomic.Int32
}

func (v *countingViewer) ShowResult(context.Context, string, *models.BlockageResult) error {
	v.calls.Add(1)
	return nil
}

func newTestRunner(t *testing.T, workers int) *Runner {
	t.Helper()
	cfg := config.Default()
	cfg.Batch.Workers = workers
	log := logger.NewNop()

	analyzer, err := NewAnalyzer(cfg, log)
	require.NoError(t, err)
	return NewRunner(cfg, analyzer, NewFileLoader(log), NewFileSaver(cfg.Output, log), log)
}

func writeFixture(t *testing.T, path string, mat *safe.Mat) {
	t.Helper()
	require.True(t, gocv.IMWrite(path, mat.GetMat()))
}

func populateInput(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "close.png"), vesselFixture(t, 8))
	writeFixture(t, filepath.Join(dir, "far.png"), vesselFixture(t, 60))
	writeFixture(t, filepath.Join(dir, ".hidden.png"), vesselFixture(t, 8))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	return dir
}

func TestListImages(t *testing.T) {
	dir := populateInput(t)

	paths, err := ListImages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "close.png"),
		filepath.Join(dir, "far.png"),
		filepath.Join(dir, "notes.txt"),
	}, paths)
}

func TestListImagesInvalidInput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	for name, dir := range map[string]string{
		"file":    file,
		"missing": filepath.Join(t.TempDir(), "missing"),
		"empty":   t.TempDir(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ListImages(dir)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
		})
	}
}

func TestRunBatch(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			input := populateInput(t)
			output := t.TempDir()

			report, err := newTestRunner(t, workers).Run(context.Background(), input, output)
			require.NoError(t, err)

			assert.Equal(t, 2, report.Processed)
			assert.Equal(t, 1, report.Flagged)
			require.Len(t, report.Skipped, 1)
			assert.Equal(t, filepath.Join(input, "notes.txt"), report.Skipped[0].Path)
			assert.True(t, apperrors.IsType(report.Skipped[0].Err, apperrors.ErrorTypeInvalidInput))

			require.Len(t, report.Results, 2)
			assert.Equal(t, models.VerdictBlockage, report.Results[0].Verdict)
			assert.Equal(t, models.VerdictNoBlockage, report.Results[1].Verdict)

			for _, name := range []string{"close.png", "close_steps.jpg", "far.png", "far_steps.jpg"} {
				assert.FileExists(t, filepath.Join(output, name))
			}
			assert.NoFileExists(t, filepath.Join(output, ".hidden.png"))

			require.NotEmpty(t, report.StageAverages)
			assert.Equal(t, "normalize", report.StageAverages[0].Stage)
			assert.Equal(t, "annotate", report.StageAverages[len(report.StageAverages)-1].Stage)
		})
	}
}

func TestRunFailsOnEmptyDirectory(t *testing.T) {
	_, err := newTestRunner(t, 1).Run(context.Background(), t.TempDir(), t.TempDir())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
}

func TestRunFailsWhenNothingDecodes(t *testing.T) {
	input := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(input, "notes.txt"), []byte("hello"), 0o644))

	report, err := newTestRunner(t, 1).Run(context.Background(), input, t.TempDir())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
	require.NotNil(t, report)
	assert.Zero(t, report.Processed)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, filepath.Join(input, "notes.txt"), report.Skipped[0].Path)
}

func TestPlanOutputsSkipsCollisions(t *testing.T) {
	paths := []string{
		"in/a.bmp",
		"in/a.tif",
		"in/scan.jpg",
		"in/scan.png",
		"in/scan_steps.jpg",
		"in/solo.png",
	}

	plans, skipped := planOutputs(paths, "out", ".jpg")

	require.Len(t, plans, 3)
	assert.Equal(t, outputPlan{input: "in/a.bmp", output: filepath.Join("out", "a.bmp")}, plans[0])
	assert.Equal(t, "in/scan.jpg", plans[1].input)
	assert.Equal(t, "in/solo.png", plans[2].input)

	require.Len(t, skipped, 3)
	for i, want := range []string{"in/a.tif", "in/scan.png", "in/scan_steps.jpg"} {
		assert.Equal(t, want, skipped[i].Path)
		assert.True(t, apperrors.IsType(skipped[i].Err, apperrors.ErrorTypeInvalidInput))
	}
	assert.ErrorContains(t, skipped[0].Err, "a.bmp")
	assert.ErrorContains(t, skipped[1].Err, "scan.jpg")
}

func TestRunSkipsCollidingOutputs(t *testing.T) {
	input := t.TempDir()
	writeFixture(t, filepath.Join(input, "scan.jpg"), vesselFixture(t, 8))
	writeFixture(t, filepath.Join(input, "scan.png"), vesselFixture(t, 60))
	output := t.TempDir()

	report, err := newTestRunner(t, 2).Run(context.Background(), input, output)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	require.Len(t, report.Results, 1)
	assert.Equal(t, filepath.Join(input, "scan.jpg"), report.Results[0].Path)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, filepath.Join(input, "scan.png"), report.Skipped[0].Path)
	assert.FileExists(t, filepath.Join(output, "scan_steps.jpg"))
	assert.NoFileExists(t, filepath.Join(output, "scan.png"))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestRunner(t, 1).Run(ctx, populateInput(t), t.TempDir())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeCancelled))
	assert.Zero(t, report.Processed)
}

func TestInteractiveCollaborators(t *testing.T) {
	runner := newTestRunner(t, 4)
	assert.Equal(t, 4, runner.Workers())

	viewer := &countingViewer{}
	runner.SetResultViewer(viewer)
	runner.SetRegionSelector(fakeSelector{})
	assert.Equal(t, 1, runner.Workers())

	report, err := runner.Run(context.Background(), populateInput(t), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, int32(2), viewer.calls.Load())
}

func TestRegionOfInterest(t *testing.T) {
	src := vesselFixture(t, 8)

	runner := newTestRunner(t, 1)
	runner.SetRegionSelector(fakeSelector{rect: image.Rect(20, 40, 160, 140), ok: true})

	roi, crop, err := runner.regionOfInterest(context.Background(), "scan", src)
	require.NoError(t, err)
	defer roi.Close()

	assert.Equal(t, image.Rect(0, 0, 500, 500), roi.Bounds())
	require.NotNil(t, crop)
	assert.Equal(t, roi.Bounds(), *crop)

	runner.SetRegionSelector(fakeSelector{ok: false})
	same, crop, err := runner.regionOfInterest(context.Background(), "scan", src)
	require.NoError(t, err)
	assert.Same(t, src, same)
	assert.Nil(t, crop)

	runner.SetRegionSelector(fakeSelector{rect: image.Rect(900, 900, 950, 950), ok: true})
	_, _, err = runner.regionOfInterest(context.Background(), "scan", src)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
}

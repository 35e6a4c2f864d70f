package pipeline

import (
	"context"
	"image"

	"angioscan/internal/models"
	"angioscan/internal/opencv/safe"
)

// ImageLoader decodes image files into BGR Mats.
type ImageLoader interface {
	LoadFromPath(path string) (*ImageData, error)
	LoadFromBytes(data []byte, format string) (*ImageData, error)
}

// ImageSaver persists an analysis result next to outputPath.
type ImageSaver interface {
	SaveResult(result *models.BlockageResult, outputPath string) (OutputPaths, error)
}

// RegionSelector asks the user for a region of interest. ok is false when
// the user skipped the selection.
type RegionSelector interface {
	SelectRegion(ctx context.Context, name string, img *safe.Mat) (rect image.Rectangle, ok bool, err error)
}

// ResultViewer shows a finished analysis and returns once the user is done
// with it.
type ResultViewer interface {
	ShowResult(ctx context.Context, name string, result *models.BlockageResult) error
}

// ImageData is a decoded input image. Mat is always three-channel BGR.
type ImageData struct {
	Path     string
	Mat      *safe.Mat
	Width    int
	Height   int
	Channels int
	Format   string
}

func (d *ImageData) Close() {
	if d != nil && d.Mat != nil {
		d.Mat.Close()
	}
}

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"angioscan/internal/config"
	"angioscan/internal/logger"
	"angioscan/internal/models"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// FileSaver writes the annotated image and the diagnostic panel.
type FileSaver struct {
	cfg    config.OutputConfig
	panel  *PanelRenderer
	logger logger.Logger
}

func NewFileSaver(cfg config.OutputConfig, log logger.Logger) *FileSaver {
	return &FileSaver{
		cfg:    cfg,
		panel:  NewPanelRenderer(cfg.PanelTileHeight),
		logger: log,
	}
}

func (s *FileSaver) SaveResult(result *models.BlockageResult, outputPath string) (OutputPaths, error) {
	if result == nil || result.Annotated == nil {
		return OutputPaths{}, fmt.Errorf("no annotated image to save")
	}

	paths := DeriveOutputPaths(outputPath, s.cfg.DefaultExtension)

	if err := os.MkdirAll(filepath.Dir(paths.Image), 0o755); err != nil {
		return OutputPaths{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	params := []int{int(gocv.IMWriteJpegQuality), s.cfg.JPEGQuality}
	if ok := gocv.IMWriteWithParams(paths.Image, result.Annotated.GetMat(), params); !ok {
		return OutputPaths{}, fmt.Errorf("failed to write %s", paths.Image)
	}

	panel, err := s.panel.Render(result.Steps)
	if err != nil {
		return OutputPaths{}, fmt.Errorf("failed to render panel: %w", err)
	}
	if err := imaging.Save(panel, paths.Panel, imaging.JPEGQuality(s.cfg.JPEGQuality)); err != nil {
		return OutputPaths{}, fmt.Errorf("failed to write %s: %w", paths.Panel, err)
	}

	s.logger.Debug("ImageSaver", "result saved", map[string]interface{}{
		"image": paths.Image,
		"panel": paths.Panel,
	})

	return paths, nil
}

package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	apperrors "angioscan/internal/errors"
	"angioscan/internal/logger"
	"angioscan/internal/opencv/conversion"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

type FileLoader struct {
	logger logger.Logger
}

// NewFileLoader returns a loader for JPEG, PNG, GIF, TIFF, BMP and WebP
// files. EXIF orientation is applied on decode.
func NewFileLoader(log logger.Logger) *FileLoader {
	return &FileLoader{logger: log}
}

func (l *FileLoader) LoadFromPath(path string) (*ImageData, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("cannot decode %s", path), err)
	}

	data, err := l.toImageData(img, determineFormat(strings.ToLower(filepath.Ext(path))))
	if err != nil {
		return nil, err
	}
	data.Path = path

	l.logger.Debug("ImageLoader", "image loaded", map[string]interface{}{
		"path":   path,
		"width":  data.Width,
		"height": data.Height,
		"format": data.Format,
	})

	return data, nil
}

func (l *FileLoader) LoadFromBytes(data []byte, format string) (*ImageData, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.NewInvalidInputError("cannot decode image data", err)
	}

	return l.toImageData(img, determineFormat(strings.ToLower(format)))
}

func (l *FileLoader) toImageData(img image.Image, format string) (*ImageData, error) {
	mat, err := conversion.ImageToMat(img)
	if err != nil {
		return nil, apperrors.NewInvalidInputError("cannot convert decoded image", err)
	}

	// Gray sources come back single-channel; the pipeline annotates in colour.
	if mat.Channels() != 3 {
		bgr, err := conversion.ConvertToBGR(mat)
		mat.Close()
		if err != nil {
			return nil, apperrors.NewInvalidInputError("cannot convert decoded image", err)
		}
		mat = bgr
	}

	return &ImageData{
		Mat:      mat,
		Width:    mat.Cols(),
		Height:   mat.Rows(),
		Channels: mat.Channels(),
		Format:   format,
	}, nil
}

func determineFormat(extension string) string {
	switch strings.TrimPrefix(extension, ".") {
	case "tiff", "tif":
		return "tiff"
	case "jpg", "jpeg":
		return "jpeg"
	case "png":
		return "png"
	case "bmp":
		return "bmp"
	case "gif":
		return "gif"
	case "webp":
		return "webp"
	default:
		return "unknown"
	}
}

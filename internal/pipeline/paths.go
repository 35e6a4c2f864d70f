package pipeline

import (
	"path/filepath"
	"strings"
)

const panelSuffix = "_steps.jpg"

// OutputPaths are the files written for one analysed image.
type OutputPaths struct {
	Image string
	Panel string
}

var recognizedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
}

// DeriveOutputPaths keeps path as the image destination when its extension
// is .jpeg, .jpg or .png (any case); otherwise the extension, if any, is
// replaced by defaultExt. The panel is always <stem>_steps.jpg.
func DeriveOutputPaths(path, defaultExt string) OutputPaths {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)

	imagePath := path
	if !recognizedExtensions[strings.ToLower(ext)] {
		imagePath = stem + defaultExt
	}

	return OutputPaths{
		Image: imagePath,
		Panel: stem + panelSuffix,
	}
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the analysis pipeline and its glue.
type Config struct {
	Contrast    ContrastConfig    `yaml:"contrast"`
	Edges       ExtractionConfig  `yaml:"edges"`
	Suppression SuppressionConfig `yaml:"suppression"`
	Vessels     ExtractionConfig  `yaml:"vessels"`
	Proximity   ProximityConfig   `yaml:"proximity"`
	Annotation  AnnotationConfig  `yaml:"annotation"`
	Crop        CropConfig        `yaml:"crop"`
	Output      OutputConfig      `yaml:"output"`
	Batch       BatchConfig       `yaml:"batch"`
}

type ContrastConfig struct {
	// ClipHistPercent is the share of total pixel mass clipped from both
	// histogram tails combined.
	ClipHistPercent float64 `yaml:"clip_hist_percent"`
}

// ExtractionConfig parameterizes one invocation of the contour extractor.
type ExtractionConfig struct {
	BlurKernel       int     `yaml:"blur_kernel"`
	Binarize         bool    `yaml:"binarize"`
	BlockDivisor     int     `yaml:"block_divisor"`
	AdaptiveConstant float64 `yaml:"adaptive_constant"`
	MorphOp          string  `yaml:"morph_op"`
	MinContourArea   float64 `yaml:"min_contour_area"`
}

type SuppressionConfig struct {
	DilateIterations int `yaml:"dilate_iterations"`
	KernelSize       int `yaml:"kernel_size"`
}

type ProximityConfig struct {
	MinDistance float64 `yaml:"min_distance"`
	DedupePairs bool    `yaml:"dedupe_pairs"`
}

type AnnotationConfig struct {
	MarkerRadius    int     `yaml:"marker_radius"`
	MarkerThickness int     `yaml:"marker_thickness"`
	BlockageColor   string  `yaml:"blockage_color"`
	ClearColor      string  `yaml:"clear_color"`
	LabelFontScale  float64 `yaml:"label_font_scale"`
	LabelThickness  int     `yaml:"label_thickness"`
}

type CropConfig struct {
	BorderFraction float64 `yaml:"border_fraction"`
	ROISize        int     `yaml:"roi_size"`
}

type OutputConfig struct {
	JPEGQuality      int    `yaml:"jpeg_quality"`
	PanelTileHeight  int    `yaml:"panel_tile_height"`
	DefaultExtension string `yaml:"default_extension"`
}

type BatchConfig struct {
	Workers int `yaml:"workers"`
}

const (
	MorphOpen  = "open"
	MorphClose = "close"
)

// Default returns the parameters the detector was tuned with.
func Default() *Config {
	return &Config{
		Contrast: ContrastConfig{ClipHistPercent: 1},
		Edges: ExtractionConfig{
			BlurKernel:       5,
			Binarize:         true,
			BlockDivisor:     12,
			AdaptiveConstant: 10,
			MorphOp:          MorphOpen,
			MinContourArea:   50,
		},
		Suppression: SuppressionConfig{DilateIterations: 2, KernelSize: 3},
		Vessels: ExtractionConfig{
			BlurKernel:       0,
			Binarize:         false,
			BlockDivisor:     12,
			AdaptiveConstant: 10,
			MorphOp:          MorphOpen,
			MinContourArea:   1250,
		},
		Proximity: ProximityConfig{MinDistance: 10},
		Annotation: AnnotationConfig{
			MarkerRadius:    25,
			MarkerThickness: -1,
			BlockageColor:   "#ff0000",
			ClearColor:      "#00ff00",
			LabelFontScale:  1,
			LabelThickness:  2,
		},
		Crop:   CropConfig{BorderFraction: 0.1, ROISize: 500},
		Output: OutputConfig{JPEGQuality: 90, PanelTileHeight: 360, DefaultExtension: ".jpg"},
		Batch:  BatchConfig{Workers: 1},
	}
}

// Load overlays the YAML file at path onto the defaults. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges and parses the configured colours.
func (c *Config) Validate() error {
	if c.Contrast.ClipHistPercent < 0 || c.Contrast.ClipHistPercent >= 100 {
		return fmt.Errorf("contrast.clip_hist_percent must be in [0, 100), got %g", c.Contrast.ClipHistPercent)
	}

	for name, pass := range map[string]ExtractionConfig{"edges": c.Edges, "vessels": c.Vessels} {
		if err := pass.validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if c.Suppression.DilateIterations < 0 {
		return fmt.Errorf("suppression.dilate_iterations must be >= 0, got %d", c.Suppression.DilateIterations)
	}
	if c.Suppression.KernelSize < 1 {
		return fmt.Errorf("suppression.kernel_size must be >= 1, got %d", c.Suppression.KernelSize)
	}
	if c.Proximity.MinDistance <= 0 {
		return fmt.Errorf("proximity.min_distance must be > 0, got %g", c.Proximity.MinDistance)
	}
	if c.Annotation.MarkerRadius <= 0 {
		return fmt.Errorf("annotation.marker_radius must be > 0, got %d", c.Annotation.MarkerRadius)
	}
	if _, err := ParseColor(c.Annotation.BlockageColor); err != nil {
		return fmt.Errorf("annotation.blockage_color: %w", err)
	}
	if _, err := ParseColor(c.Annotation.ClearColor); err != nil {
		return fmt.Errorf("annotation.clear_color: %w", err)
	}
	if c.Crop.BorderFraction < 0 || c.Crop.BorderFraction >= 0.5 {
		return fmt.Errorf("crop.border_fraction must be in [0, 0.5), got %g", c.Crop.BorderFraction)
	}
	if c.Crop.ROISize < 0 {
		return fmt.Errorf("crop.roi_size must be >= 0, got %d", c.Crop.ROISize)
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("output.jpeg_quality must be in [1, 100], got %d", c.Output.JPEGQuality)
	}
	if c.Output.PanelTileHeight < 16 {
		return fmt.Errorf("output.panel_tile_height must be >= 16, got %d", c.Output.PanelTileHeight)
	}
	if !strings.HasPrefix(c.Output.DefaultExtension, ".") {
		return fmt.Errorf("output.default_extension must start with a dot, got %q", c.Output.DefaultExtension)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be >= 1, got %d", c.Batch.Workers)
	}
	return nil
}

func (e ExtractionConfig) validate() error {
	if e.BlurKernel < 0 || (e.BlurKernel > 0 && e.BlurKernel%2 == 0) {
		return fmt.Errorf("blur_kernel must be 0 or a positive odd number, got %d", e.BlurKernel)
	}
	if e.Binarize && e.BlockDivisor < 1 {
		return fmt.Errorf("block_divisor must be >= 1, got %d", e.BlockDivisor)
	}
	if e.MorphOp != MorphOpen && e.MorphOp != MorphClose {
		return fmt.Errorf("morph_op must be %q or %q, got %q", MorphOpen, MorphClose, e.MorphOp)
	}
	if e.MinContourArea < 0 {
		return fmt.Errorf("min_contour_area must be >= 0, got %g", e.MinContourArea)
	}
	return nil
}

// ParseColor converts a hex colour such as "#ff0000" into an opaque RGBA.
func ParseColor(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

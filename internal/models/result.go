package models

import (
	"image"
	"time"

	"angioscan/internal/opencv/safe"
)

type Verdict string

const (
	VerdictBlockage   Verdict = "Possible Blockage"
	VerdictNoBlockage Verdict = "No Blockage Detected"
)

// VerdictFor classifies a detection count.
func VerdictFor(count int) Verdict {
	if count > 0 {
		return VerdictBlockage
	}
	return VerdictNoBlockage
}

// Step is one named intermediate image kept for inspection.
type Step struct {
	Name  string
	Image *safe.Mat
}

// StageTiming records how long one pipeline stage took.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// BlockageResult is the terminal artifact of one analysis. It owns every
// Mat it references; Close releases them.
type BlockageResult struct {
	Annotated  *safe.Mat
	Detections []Detection
	// DetectionCount follows the configured pair mode: ordered pairs by
	// default, unordered when deduplication is on.
	DetectionCount int
	// SiteCount is the number of distinct unordered contour pairs.
	SiteCount int
	Verdict   Verdict
	Steps     []Step
	Crop      image.Rectangle
	Warnings  []error
	Timings   []StageTiming
}

// Step returns the named intermediate image, or nil.
func (r *BlockageResult) Step(name string) *safe.Mat {
	for _, s := range r.Steps {
		if s.Name == name {
			return s.Image
		}
	}
	return nil
}

func (r *BlockageResult) Close() {
	if r == nil {
		return
	}
	if r.Annotated != nil {
		r.Annotated.Close()
	}
	for _, s := range r.Steps {
		if s.Image != nil {
			s.Image.Close()
		}
	}
}

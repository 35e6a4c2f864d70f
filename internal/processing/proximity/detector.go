package proximity

import (
	"context"
	"image"

	"angioscan/internal/config"
	"angioscan/internal/logger"
	"angioscan/internal/models"
)

// Detector flags pairs of contours that come closer than a minimum
// distance.
type Detector struct {
	minDistance float64
	dedupe      bool
	logger      logger.Logger
}

func NewDetector(cfg config.ProximityConfig, log logger.Logger) *Detector {
	return &Detector{minDistance: cfg.MinDistance, dedupe: cfg.DedupePairs, logger: log}
}

// Detect scans contour pairs and returns one Detection per pair that has a
// point closer than the minimum distance. Without deduplication every
// ordered pair (i, j), i != j, is scanned, so a close pair is reported
// twice, once anchored on each contour. With deduplication only i < j is
// scanned.
func (d *Detector) Detect(ctx context.Context, contours []models.Contour) ([]models.Detection, error) {
	var detections []models.Detection

	for i := range contours {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		start := 0
		if d.dedupe {
			start = i + 1
		}

		for j := start; j < len(contours); j++ {
			if i == j {
				continue
			}
			if anchor, ok := FirstClosePoint(contours[i].Points, contours[j].Points, d.minDistance); ok {
				detections = append(detections, models.Detection{Anchor: anchor, First: i, Second: j})
			}
		}
	}

	d.logger.Debug("ProximityDetector", "contour pairs scanned", map[string]interface{}{
		"contours":     len(contours),
		"detections":   len(detections),
		"sites":        UniquePairs(detections),
		"min_distance": d.minDistance,
		"dedupe":       d.dedupe,
	})

	return detections, nil
}

// FirstClosePoint returns the first point p of a, scanning a then b in
// order, whose distance to some point of b is strictly below minDistance.
func FirstClosePoint(a, b []image.Point, minDistance float64) (image.Point, bool) {
	limit := minDistance * minDistance

	for _, p := range a {
		for _, q := range b {
			dx := float64(p.X - q.X)
			dy := float64(p.Y - q.Y)
			if dx*dx+dy*dy < limit {
				return p, true
			}
		}
	}
	return image.Point{}, false
}

// UniquePairs counts the distinct unordered contour pairs in detections.
func UniquePairs(detections []models.Detection) int {
	seen := make(map[[2]int]struct{}, len(detections))
	for _, det := range detections {
		seen[det.Pair()] = struct{}{}
	}
	return len(seen)
}

package gui

import "image"

// Accumulator collects the rectangles drawn over an image. It is a value
// type; Add returns a new Accumulator and never changes the receiver.
type Accumulator struct {
	boxes []image.Rectangle
}

// Add records a rectangle given by any two opposite corners.
func (a Accumulator) Add(r image.Rectangle) Accumulator {
	boxes := make([]image.Rectangle, len(a.boxes), len(a.boxes)+1)
	copy(boxes, a.boxes)
	return Accumulator{boxes: append(boxes, r.Canon())}
}

func (a Accumulator) Len() int {
	return len(a.boxes)
}

func (a Accumulator) Boxes() []image.Rectangle {
	return append([]image.Rectangle(nil), a.boxes...)
}

// Bounds returns the smallest rectangle containing every corner recorded so
// far. ok is false when nothing was drawn or the corners span no area.
func (a Accumulator) Bounds() (image.Rectangle, bool) {
	if len(a.boxes) == 0 {
		return image.Rectangle{}, false
	}

	bounds := a.boxes[0]
	for _, box := range a.boxes[1:] {
		bounds.Min.X = min(bounds.Min.X, box.Min.X)
		bounds.Min.Y = min(bounds.Min.Y, box.Min.Y)
		bounds.Max.X = max(bounds.Max.X, box.Max.X)
		bounds.Max.Y = max(bounds.Max.Y, box.Max.Y)
	}

	return bounds, !bounds.Empty()
}

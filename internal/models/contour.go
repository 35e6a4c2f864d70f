package models

import (
	"image"
)

// Contour is the closed boundary of one foreground region. Points are in
// the coordinate space of the image they were extracted from.
type Contour struct {
	Points []image.Point
	Area   float64
}

// Bounds returns the smallest rectangle containing every point.
func (c Contour) Bounds() image.Rectangle {
	if len(c.Points) == 0 {
		return image.Rectangle{}
	}

	r := image.Rectangle{Min: c.Points[0], Max: c.Points[0].Add(image.Pt(1, 1))}
	for _, p := range c.Points[1:] {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return r
}

// Detection marks a place where contours First and Second come closer than
// the configured distance. Anchor is a point of contour First.
type Detection struct {
	Anchor image.Point
	First  int
	Second int
}

// Pair returns the contour indices in ascending order.
func (d Detection) Pair() [2]int {
	if d.First > d.Second {
		return [2]int{d.Second, d.First}
	}
	return [2]int{d.First, d.Second}
}

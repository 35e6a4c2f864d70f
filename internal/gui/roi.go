package gui

import (
	"context"
	"fmt"
	"image"
	"image/color"

	apperrors "angioscan/internal/errors"
	"angioscan/internal/opencv/conversion"
	"angioscan/internal/opencv/safe"
	"angioscan/internal/pipeline"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

var _ pipeline.RegionSelector = (*Session)(nil)

// maxDisplaySize bounds the on-screen size of an image; larger images are
// shown scaled down and drawn coordinates are mapped back.
var maxDisplaySize = fyne.NewSize(960, 640)

var outlineColor = color.NRGBA{G: 255, A: 255}

type selection struct {
	rect image.Rectangle
	ok   bool
}

// SelectRegion shows img and lets the user outline one or more rectangles.
// The bounding box of everything drawn is returned. Skip, Escape, or
// confirming with nothing drawn returns ok=false.
func (s *Session) SelectRegion(ctx context.Context, name string, img *safe.Mat) (image.Rectangle, bool, error) {
	picture, err := conversion.MatToImage(img)
	if err != nil {
		return image.Rectangle{}, false, fmt.Errorf("failed to prepare %s for display: %w", name, err)
	}

	answers := make(chan selection, 1)
	bounds := picture.Bounds()

	fyne.Do(func() {
		region := newRegionCanvas(picture, fitScale(bounds.Dx(), bounds.Dy(), maxDisplaySize))
		hint := widget.NewLabel("Drag to outline the vessel region, then press Use selection or Q")

		use := widget.NewButton("Use selection", func() {
			rect, ok := region.Selection()
			offer(answers, selection{rect: rect, ok: ok})
		})
		use.Importance = widget.HighImportance
		use.Disable()

		region.onChange = func(acc Accumulator) {
			if acc.Len() == 0 {
				use.Disable()
				hint.SetText("Drag to outline the vessel region, then press Use selection or Q")
				return
			}
			use.Enable()
			hint.SetText(fmt.Sprintf("%d rectangle(s) drawn", acc.Len()))
		}

		reset := widget.NewButton("Clear", region.Clear)
		skip := widget.NewButton("Skip", func() {
			offer(answers, selection{})
		})

		s.window.SetTitle(fmt.Sprintf("%s - %s - select region", AppName, name))
		s.window.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
			switch ev.Name {
			case fyne.KeyQ, fyne.KeyReturn, fyne.KeyEnter:
				rect, ok := region.Selection()
				offer(answers, selection{rect: rect, ok: ok})
			case fyne.KeyEscape:
				offer(answers, selection{})
			}
		})
		s.window.SetContent(container.NewBorder(
			hint,
			container.NewHBox(layout.NewSpacer(), reset, skip, use),
			nil, nil,
			container.NewScroll(container.NewCenter(region)),
		))
	})

	answer, err := await(ctx, answers)
	if err != nil {
		return image.Rectangle{}, false, apperrors.NewCancelledError("region selection", err)
	}

	s.logger.Debug("GUISession", "region selection finished", map[string]interface{}{
		"image":  name,
		"region": answer.rect.String(),
		"used":   answer.ok,
	})
	s.showStatus(fmt.Sprintf("Analysing %s...", name))

	return answer.rect, answer.ok, nil
}

// regionCanvas displays an image and records dragged rectangles in image
// pixel coordinates.
type regionCanvas struct {
	widget.BaseWidget

	overlay *fyne.Container
	active  *canvas.Rectangle
	scale   float32
	bounds  image.Rectangle

	dragging bool
	start    fyne.Position
	current  fyne.Position
	acc      Accumulator

	onChange func(Accumulator)
}

func newRegionCanvas(img image.Image, scale float32) *regionCanvas {
	bounds := img.Bounds()
	size := fyne.NewSize(float32(bounds.Dx())*scale, float32(bounds.Dy())*scale)

	picture := canvas.NewImageFromImage(img)
	picture.FillMode = canvas.ImageFillStretch
	picture.ScaleMode = canvas.ImageScaleSmooth
	picture.SetMinSize(size)
	picture.Resize(size)

	active := newOutline()
	active.Hide()

	r := &regionCanvas{
		overlay: container.NewWithoutLayout(picture, active),
		active:  active,
		scale:   scale,
		bounds:  bounds,
	}
	r.ExtendBaseWidget(r)
	return r
}

func (r *regionCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(r.overlay)
}

func (r *regionCanvas) Dragged(ev *fyne.DragEvent) {
	if !r.dragging {
		r.dragging = true
		r.start = r.clamp(ev.Position.Subtract(ev.Dragged))
	}
	r.current = r.clamp(ev.Position)

	place(r.active, r.start, r.current)
	r.active.Show()
	canvas.Refresh(r.active)
}

func (r *regionCanvas) DragEnd() {
	if !r.dragging {
		return
	}
	r.dragging = false
	r.active.Hide()

	rect := image.Rectangle{
		Min: toImagePoint(r.start, r.scale, r.bounds),
		Max: toImagePoint(r.current, r.scale, r.bounds),
	}
	r.acc = r.acc.Add(rect)

	box := newOutline()
	place(box, r.start, r.current)
	r.overlay.Add(box)
	r.overlay.Refresh()

	if r.onChange != nil {
		r.onChange(r.acc)
	}
}

// Clear forgets every drawn rectangle.
func (r *regionCanvas) Clear() {
	r.acc = Accumulator{}
	r.overlay.Objects = r.overlay.Objects[:2]
	r.overlay.Refresh()

	if r.onChange != nil {
		r.onChange(r.acc)
	}
}

// Selection is the bounding box of every rectangle drawn so far.
func (r *regionCanvas) Selection() (image.Rectangle, bool) {
	return r.acc.Bounds()
}

func (r *regionCanvas) clamp(pos fyne.Position) fyne.Position {
	w := float32(r.bounds.Dx()) * r.scale
	h := float32(r.bounds.Dy()) * r.scale
	return fyne.NewPos(min(max(pos.X, 0), w), min(max(pos.Y, 0), h))
}

func newOutline() *canvas.Rectangle {
	rect := canvas.NewRectangle(color.Transparent)
	rect.StrokeColor = outlineColor
	rect.StrokeWidth = 2
	return rect
}

func place(rect *canvas.Rectangle, a, b fyne.Position) {
	rect.Move(fyne.NewPos(min(a.X, b.X), min(a.Y, b.Y)))
	rect.Resize(fyne.NewSize(abs32(a.X-b.X), abs32(a.Y-b.Y)))
}

// fitScale returns the factor that fits a width x height image inside
// limit without enlarging it.
func fitScale(width, height int, limit fyne.Size) float32 {
	scale := float32(1)
	if width <= 0 || height <= 0 {
		return scale
	}
	if sx := limit.Width / float32(width); sx < scale {
		scale = sx
	}
	if sy := limit.Height / float32(height); sy < scale {
		scale = sy
	}
	return scale
}

// toImagePoint maps a widget position back to a pixel inside bounds.
func toImagePoint(pos fyne.Position, scale float32, bounds image.Rectangle) image.Point {
	if scale <= 0 {
		scale = 1
	}
	x := bounds.Min.X + int(pos.X/scale+0.5)
	y := bounds.Min.Y + int(pos.Y/scale+0.5)
	return image.Pt(
		min(max(x, bounds.Min.X), bounds.Max.X),
		min(max(y, bounds.Min.Y), bounds.Max.Y),
	)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

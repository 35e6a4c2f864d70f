package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"angioscan/internal/models"
	"angioscan/internal/opencv/conversion"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	captionHeight = 20
	tileGap       = 4
)

// PanelRenderer lays intermediate images side by side, each scaled to the
// same height and captioned "Step N | name".
type PanelRenderer struct {
	tileHeight int
}

func NewPanelRenderer(tileHeight int) *PanelRenderer {
	return &PanelRenderer{tileHeight: tileHeight}
}

func (p *PanelRenderer) Render(steps []models.Step) (*image.NRGBA, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("no steps to render")
	}

	tiles := make([]image.Image, 0, len(steps))
	width := 0
	for _, step := range steps {
		img, err := conversion.MatToImage(step.Image)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Name, err)
		}

		tile := p.scale(img)
		tiles = append(tiles, tile)
		width += tile.Bounds().Dx()
	}
	width += tileGap * (len(tiles) - 1)

	panel := imaging.New(width, p.tileHeight+captionHeight, color.White)

	x := 0
	for i, tile := range tiles {
		panel = imaging.Paste(panel, tile, image.Pt(x, captionHeight))
		drawCaption(panel, x+4, fmt.Sprintf("Step %d | %s", i+1, steps[i].Name))
		x += tile.Bounds().Dx() + tileGap
	}

	return panel, nil
}

func (p *PanelRenderer) scale(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dy() == p.tileHeight {
		return img
	}

	w := b.Dx() * p.tileHeight / b.Dy()
	if w < 1 {
		w = 1
	}
	return transform.Resize(img, w, p.tileHeight, transform.Linear)
}

func drawCaption(dst *image.NRGBA, x int, text string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, captionHeight-6),
	}
	d.DrawString(text)
}

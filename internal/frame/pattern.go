package frame

import (
	"image"
	"image/color"
)

var barColors = []color.RGBA{
	{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	{R: 0xff, G: 0xff, B: 0x00, A: 0xff},
	{R: 0x00, G: 0xff, B: 0xff, A: 0xff},
	{R: 0x00, G: 0xff, B: 0x00, A: 0xff},
	{R: 0xff, G: 0x00, B: 0xff, A: 0xff},
	{R: 0xff, G: 0x00, B: 0x00, A: 0xff},
	{R: 0x00, G: 0x00, B: 0xff, A: 0xff},
}

// Pattern generates synthetic test frames: vertical color bars that scroll
// one step to the right on every call to Next.
type Pattern struct {
	width  int
	height int
	offset int
}

// NewPattern creates a pattern generator for the given frame size.
func NewPattern(width, height int) *Pattern {
	return &Pattern{width: width, height: height}
}

// Next renders the next pattern frame.
func (p *Pattern) Next() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	barWidth := p.width / len(barColors)
	if barWidth == 0 {
		barWidth = 1
	}
	for x := 0; x < p.width; x++ {
		c := barColors[((x+p.offset)/barWidth)%len(barColors)]
		for y := 0; y < p.height; y++ {
			i := img.PixOffset(x, y)
			img.Pix[i+0] = c.R
			img.Pix[i+1] = c.G
			img.Pix[i+2] = c.B
			img.Pix[i+3] = 0xff
		}
	}
	p.offset += 4
	return img
}

// Solid returns a frame filled with a single opaque color.
func Solid(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = 0xff
	}
	return img
}

package frame

import (
	"image"
	"time"
)

// Frame is a decoded frame received from the feed.
// Image is always fully opaque with pixels in R, G, B order.
type Frame struct {
	Image     *image.RGBA
	Timestamp time.Time
	Seq       uint64
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int {
	return f.Image.Bounds().Dx()
}

// Height returns the frame height in pixels.
func (f *Frame) Height() int {
	return f.Image.Bounds().Dy()
}

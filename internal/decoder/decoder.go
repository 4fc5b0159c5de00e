package decoder

import (
	"errors"
	"fmt"
	"image"
)

// DefaultMaxPixels caps the size of a decoded frame, 8K UHD with headroom.
// Larger frames are rejected before any pixel buffer is allocated.
const DefaultMaxPixels = 64 << 20

var (
	// ErrEmptyFrame is returned for a zero-length payload.
	ErrEmptyFrame = errors.New("empty frame payload")
	// ErrUnsupportedEncoding is returned for raw frames in an unknown pixel encoding.
	ErrUnsupportedEncoding = errors.New("unsupported pixel encoding")
	// ErrFrameTooLarge is returned for frames whose declared size exceeds the
	// decoder's pixel limit.
	ErrFrameTooLarge = errors.New("frame too large")
)

// Decoder decodes bytes into an image.
type Decoder interface {
	Decode(data []byte) (*image.RGBA, error)
}

func checkSize(width, height uint64, maxPixels int) error {
	if width*height > uint64(maxPixels) {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrFrameTooLarge, width, height, maxPixels)
	}
	return nil
}

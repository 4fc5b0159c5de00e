package decoder

import (
	"bytes"
	"image"
)

var (
	jpegMagic = []byte{0xff, 0xd8, 0xff}
	pngMagic  = []byte{0x89, 'P', 'N', 'G'}
)

// AutoDecoder picks the decoder from the payload itself: JPEG and PNG are
// recognized by their magic bytes, anything else is treated as a RawImage.
type AutoDecoder struct {
	image *ImageDecoder
	raw   *RawDecoder
}

func NewAutoDecoder() *AutoDecoder {
	return NewAutoDecoderLimit(DefaultMaxPixels)
}

// NewAutoDecoderLimit creates an AutoDecoder whose decoders reject frames
// larger than maxPixels.
func NewAutoDecoderLimit(maxPixels int) *AutoDecoder {
	return &AutoDecoder{
		image: NewImageDecoderLimit(maxPixels),
		raw:   NewRawDecoderLimit(maxPixels),
	}
}

func (d *AutoDecoder) Decode(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	if bytes.HasPrefix(data, jpegMagic) || bytes.HasPrefix(data, pngMagic) {
		return d.image.Decode(data)
	}
	return d.raw.Decode(data)
}

package encoder

import (
	"fmt"
	"image"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/junsooki/framegrab/internal/decoder"
)

// RawEncoder packs frames into msgpack RawImage payloads.
type RawEncoder struct {
	encoding string
}

// NewRawEncoder creates a raw encoder for one of the decoder.Encoding* values.
func NewRawEncoder(encoding string) (*RawEncoder, error) {
	if decoder.BytesPerPixel(encoding) == 0 {
		return nil, fmt.Errorf("%w: %q", decoder.ErrUnsupportedEncoding, encoding)
	}
	return &RawEncoder{encoding: encoding}, nil
}

func (e *RawEncoder) Encode(img *image.RGBA) ([]byte, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	size := decoder.BytesPerPixel(e.encoding)
	raw := decoder.RawImage{
		Height:   uint32(h),
		Width:    uint32(w),
		Encoding: e.encoding,
		Step:     uint32(w * size),
		Data:     make([]byte, w*h*size),
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.RGBAAt(b.Min.X+x, b.Min.Y+y)
			px := raw.Data[(y*w+x)*size:]
			switch e.encoding {
			case decoder.EncodingRGB8:
				px[0], px[1], px[2] = c.R, c.G, c.B
			case decoder.EncodingBGR8:
				px[0], px[1], px[2] = c.B, c.G, c.R
			case decoder.EncodingRGBA8:
				px[0], px[1], px[2], px[3] = c.R, c.G, c.B, c.A
			case decoder.EncodingBGRA8:
				px[0], px[1], px[2], px[3] = c.B, c.G, c.R, c.A
			case decoder.EncodingMono8:
				// ITU-R 601 luma
				px[0] = uint8((299*uint32(c.R) + 587*uint32(c.G) + 114*uint32(c.B) + 500) / 1000)
			}
		}
	}
	return msgpack.Marshal(&raw)
}

func (e *RawEncoder) Ext() string { return "msgpack" }

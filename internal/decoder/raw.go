package decoder

import (
	"fmt"
	"image"

	"github.com/vmihailenco/msgpack/v5"
)

// Pixel encodings understood by RawDecoder.
const (
	EncodingRGB8  = "rgb8"
	EncodingBGR8  = "bgr8"
	EncodingRGBA8 = "rgba8"
	EncodingBGRA8 = "bgra8"
	EncodingMono8 = "mono8"
)

// RawImage is an uncompressed frame as published by camera drivers.
// Step is the length of one row in bytes and may include padding.
type RawImage struct {
	Height      uint32 `msgpack:"height"`
	Width       uint32 `msgpack:"width"`
	Encoding    string `msgpack:"encoding"`
	IsBigEndian uint8  `msgpack:"is_bigendian"`
	Step        uint32 `msgpack:"step"`
	Data        []byte `msgpack:"data"`
}

// channelOrder gives, per encoding, the source byte offsets of R, G and B
// and the number of bytes per pixel.
var channelOrder = map[string]struct {
	r, g, b int
	size    int
}{
	EncodingRGB8:  {0, 1, 2, 3},
	EncodingBGR8:  {2, 1, 0, 3},
	EncodingRGBA8: {0, 1, 2, 4},
	EncodingBGRA8: {2, 1, 0, 4},
	EncodingMono8: {0, 0, 0, 1},
}

// BytesPerPixel returns the pixel size of an encoding, or 0 if unknown.
func BytesPerPixel(encoding string) int {
	return channelOrder[encoding].size
}

// RawDecoder decodes msgpack RawImage payloads.
type RawDecoder struct {
	maxPixels int
}

func NewRawDecoder() *RawDecoder {
	return NewRawDecoderLimit(DefaultMaxPixels)
}

// NewRawDecoderLimit creates a RawDecoder rejecting frames larger than
// maxPixels. maxPixels <= 0 uses DefaultMaxPixels.
func NewRawDecoderLimit(maxPixels int) *RawDecoder {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &RawDecoder{maxPixels: maxPixels}
}

func (d *RawDecoder) Decode(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	var raw RawImage
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal raw image: %w", err)
	}
	if err := checkSize(uint64(raw.Width), uint64(raw.Height), d.maxPixels); err != nil {
		return nil, fmt.Errorf("raw image: %w", err)
	}
	return raw.ToRGBA()
}

// ToRGBA converts the raw pixel buffer into an opaque RGBA image. The
// declared geometry must be covered by Data, so the output size is bounded
// by the payload size.
func (r *RawImage) ToRGBA() (*image.RGBA, error) {
	order, ok := channelOrder[r.Encoding]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, r.Encoding)
	}
	if r.Width == 0 || r.Height == 0 {
		return nil, fmt.Errorf("invalid raw image size %dx%d", r.Width, r.Height)
	}

	// each factor is below 2^32, so no product overflows uint64
	w, h, step := uint64(r.Width), uint64(r.Height), uint64(r.Step)
	rowBytes := w * uint64(order.size)
	if step < rowBytes {
		return nil, fmt.Errorf("row step %d too small for %d pixels of %s", step, w, r.Encoding)
	}
	have := uint64(len(r.Data))
	if step*(h-1) > have {
		return nil, fmt.Errorf("raw image data too short: got %d bytes for %d rows of %d", have, h, step)
	}
	if need := step*(h-1) + rowBytes; have < need {
		return nil, fmt.Errorf("raw image data too short: got %d bytes, need %d", have, need)
	}

	width, height, stride := int(w), int(h), int(step)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := r.Data[y*stride:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < width; x++ {
			s := x * order.size
			d := x * 4
			dst[d+0] = row[s+order.r]
			dst[d+1] = row[s+order.g]
			dst[d+2] = row[s+order.b]
			dst[d+3] = 0xff
		}
	}
	return img, nil
}

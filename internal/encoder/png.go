package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// PNG compression level names accepted in configuration.
var pngLevels = map[string]png.CompressionLevel{
	"default": png.DefaultCompression,
	"none":    png.NoCompression,
	"speed":   png.BestSpeed,
	"best":    png.BestCompression,
}

// ValidPNGCompression returns the accepted compression level names.
func ValidPNGCompression() []string {
	return []string{"default", "none", "speed", "best"}
}

// PNGEncoder encodes frames as PNG.
type PNGEncoder struct {
	enc png.Encoder
}

// NewPNGEncoder creates a PNG encoder for the named compression level.
func NewPNGEncoder(level string) (*PNGEncoder, error) {
	if level == "" {
		level = "default"
	}
	l, ok := pngLevels[level]
	if !ok {
		return nil, fmt.Errorf("unknown png compression level %q", level)
	}
	return &PNGEncoder{enc: png.Encoder{CompressionLevel: l}}, nil
}

func (e *PNGEncoder) Encode(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *PNGEncoder) Ext() string { return "png" }

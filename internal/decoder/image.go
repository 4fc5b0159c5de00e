package decoder

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
)

// ImageDecoder decodes compressed images (JPEG, PNG) into *image.RGBA.
type ImageDecoder struct {
	maxPixels int
}

func NewImageDecoder() *ImageDecoder {
	return NewImageDecoderLimit(DefaultMaxPixels)
}

// NewImageDecoderLimit creates an ImageDecoder rejecting images larger than
// maxPixels. maxPixels <= 0 uses DefaultMaxPixels.
func NewImageDecoderLimit(maxPixels int) *ImageDecoder {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &ImageDecoder{maxPixels: maxPixels}
}

// Decode checks the size declared in the image header against the pixel
// limit before any pixel data is decoded.
func (d *ImageDecoder) Decode(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if err := checkSize(uint64(cfg.Width), uint64(cfg.Height), d.maxPixels); err != nil {
		return nil, fmt.Errorf("%s: %w", format, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return toOpaqueRGBA(img), nil
}

// toOpaqueRGBA converts img to an RGBA image anchored at the origin with the
// alpha channel dropped, keeping the unpremultiplied color values.
func toOpaqueRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || b.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	rgba := image.NewRGBA(nrgba.Bounds())
	for y := 0; y < b.Dy(); y++ {
		src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+b.Dx()*4]
		dst := rgba.Pix[y*rgba.Stride : y*rgba.Stride+b.Dx()*4]
		for i := 0; i < len(src); i += 4 {
			dst[i+0] = src[i+0]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i+2]
			dst[i+3] = 0xff
		}
	}
	return rgba
}

package encoder

import "image"

// Encoder encodes an image into bytes.
type Encoder interface {
	Encode(img *image.RGBA) ([]byte, error)
	// Ext is the file extension for the encoded format, without the dot.
	Ext() string
}

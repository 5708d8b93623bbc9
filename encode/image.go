package encode

import (
	"image"
	"image/draw"

	"github.com/blockberries/digitchain"
	"github.com/blockberries/digitchain/types"
)

// FromImage captures img as a PixelBuffer with non-premultiplied
// alpha, the same layout a canvas returns from getImageData.
func FromImage(img image.Image) types.PixelBuffer {
	bounds := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
	return types.PixelBuffer{
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Pix:    nrgba.Pix,
	}
}

// ImageCapturer adapts a static image to the Capturer interface.
type ImageCapturer struct {
	Image image.Image
}

var _ digitchain.Capturer = ImageCapturer{}

// Capture returns a fresh buffer on every call.
func (c ImageCapturer) Capture() (types.PixelBuffer, error) {
	return FromImage(c.Image), nil
}

// Package types defines the data exchanged between a presentation host
// and a digitchain session.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization. Transport concerns (gRPC codec
// registration) are handled in the transport packages.
package types

import "fmt"

// PixelBuffer is an immutable RGBA capture of a drawing surface.
//
// Pix holds Width*Height samples of four bytes each (red, green, blue,
// alpha) in row-major order, exactly as a canvas returns them.
type PixelBuffer struct {
	Width  uint32 `cramberry:"1"`
	Height uint32 `cramberry:"2"`
	Pix    []byte `cramberry:"3"`
}

// Validate checks the size invariants of the buffer.
func (b PixelBuffer) Validate() error {
	if b.Width == 0 || b.Height == 0 {
		return fmt.Errorf("pixel buffer: dimensions must be positive, got %dx%d", b.Width, b.Height)
	}
	// Width*Height fits in uint64; multiplying by 4 as well may not.
	n := uint64(len(b.Pix))
	if n%4 != 0 || n/4 != uint64(b.Width)*uint64(b.Height) {
		return fmt.Errorf("pixel buffer: %dx%d needs %d pixels, got %d bytes", b.Width, b.Height, uint64(b.Width)*uint64(b.Height), len(b.Pix))
	}
	return nil
}

// RGBA returns the four channels of the pixel at (x, y).
func (b PixelBuffer) RGBA(x, y int) (r, g, bl, a uint8) {
	i := (y*int(b.Width) + x) * 4
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3]
}

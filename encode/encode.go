// Package encode converts captured drawings into the tensors the
// predictor contract accepts.
//
// Encoding is a pure function of the pixel buffer and the mode: the
// same buffer always yields the same tensor, so a prediction can be
// retried without redrawing.
package encode

import (
	"fmt"
	"math"

	"github.com/blockberries/digitchain"
	"github.com/blockberries/digitchain/types"
)

// Mode selects the encoding algorithm. Each deployed predictor version
// accepts exactly one mode.
type Mode uint8

const (
	// Downsample16 averages the buffer down to 16x16 inverted gray.
	Downsample16 Mode = iota + 1
	// Grayscale28 converts a native 28x28 buffer to luminance.
	Grayscale28
)

func (m Mode) String() string {
	switch m {
	case Downsample16:
		return "downsample16"
	case Grayscale28:
		return "grayscale28"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// Side returns the tensor side length produced by the mode.
func (m Mode) Side() int {
	switch m {
	case Downsample16:
		return types.Side16
	case Grayscale28:
		return types.Side28
	default:
		return 0
	}
}

// ModeForSize maps a predictor input size to its mode.
func ModeForSize(size int) (Mode, error) {
	switch size {
	case types.Side16:
		return Downsample16, nil
	case types.Side28:
		return Grayscale28, nil
	default:
		return 0, fmt.Errorf("encode: unsupported input size %d (want 16 or 28)", size)
	}
}

// Encode maps buf to a tensor using mode.
//
// A buffer whose length does not match its dimensions, or a non-28x28
// buffer in Grayscale28 mode, fails with KindMalformedInput.
func Encode(buf types.PixelBuffer, mode Mode) (types.Tensor, error) {
	if err := buf.Validate(); err != nil {
		return types.Tensor{}, digitchain.NewError(digitchain.KindMalformedInput, "encode", err)
	}
	switch mode {
	case Downsample16:
		return downsample16(buf), nil
	case Grayscale28:
		if buf.Width != types.Side28 || buf.Height != types.Side28 {
			return types.Tensor{}, digitchain.Errorf(digitchain.KindMalformedInput, "encode",
				"grayscale28 needs a 28x28 buffer, got %dx%d", buf.Width, buf.Height)
		}
		return grayscale28(buf), nil
	default:
		return types.Tensor{}, digitchain.Errorf(digitchain.KindMalformedInput, "encode", "unknown mode %s", mode)
	}
}

// downsample16 splits the buffer into a 16x16 grid of blocks and
// averages the inverted gray level of the opaque pixels in each block.
// Blocks may cover unequal pixel counts when a dimension is not a
// multiple of 16; a block with no opaque pixel is 0.
func downsample16(buf types.PixelBuffer) types.Tensor {
	const side = types.Side16
	width, height := int(buf.Width), int(buf.Height)
	blockW := float64(width) / side
	blockH := float64(height) / side

	avg := make([]float64, side*side)
	for row := 0; row < side; row++ {
		rStart := int(math.Floor(float64(row) * blockH))
		rEnd := int(math.Floor(float64(row+1) * blockH))
		for col := 0; col < side; col++ {
			cStart := int(math.Floor(float64(col) * blockW))
			cEnd := int(math.Floor(float64(col+1) * blockW))

			var sum float64
			var count int
			for y := rStart; y < rEnd; y++ {
				for x := cStart; x < cEnd; x++ {
					r, g, b, a := buf.RGBA(x, y)
					if a == 0 {
						continue
					}
					sum += 255 - float64(int(r)+int(g)+int(b))/3
					count++
				}
			}
			if count > 0 {
				avg[row*side+col] = sum / float64(count)
			}
		}
	}

	// Rounding happens once, after averaging.
	out := types.NewTensor(side)
	for i, v := range avg {
		out.Cells[i] = int64(math.Round(v))
	}
	return out
}

// Luminance weights (ITU-R BT.601).
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

func grayscale28(buf types.PixelBuffer) types.Tensor {
	const side = types.Side28
	out := types.NewTensor(side)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			r, g, b, _ := buf.RGBA(x, y)
			out.Cells[y*side+x] = Luminance(r, g, b)
		}
	}
	return out
}

// Luminance returns the rounded BT.601 luma of an RGB sample.
func Luminance(r, g, b uint8) int64 {
	return int64(math.Round(lumaR*float64(r) + lumaG*float64(g) + lumaB*float64(b)))
}

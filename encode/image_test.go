package encode_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/digitchain/encode"
)

func TestFromImage_Opaque(t *testing.T) {
	img := image.NewGray(image.Rect(10, 10, 38, 38))
	for y := 10; y < 38; y++ {
		for x := 10; x < 38; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	img.SetGray(12, 11, color.Gray{Y: 0})

	buf := encode.FromImage(img)
	require.NoError(t, buf.Validate())
	assert.Equal(t, uint32(28), buf.Width)
	assert.Equal(t, uint32(28), buf.Height)

	r, g, b, a := buf.RGBA(2, 1)
	assert.Equal(t, [4]uint8{0, 0, 0, 255}, [4]uint8{r, g, b, a})
	r, g, b, a = buf.RGBA(0, 0)
	assert.Equal(t, [4]uint8{255, 255, 255, 255}, [4]uint8{r, g, b, a})

	tensor, err := encode.Encode(buf, encode.Grayscale28)
	require.NoError(t, err)
	assert.Equal(t, int64(0), tensor.At(1, 2))
	assert.Equal(t, int64(255), tensor.At(0, 0))
}

func TestImageCapturer_FreshBuffer(t *testing.T) {
	c := encode.ImageCapturer{Image: image.NewNRGBA(image.Rect(0, 0, 4, 4))}
	first, err := c.Capture()
	require.NoError(t, err)
	first.Pix[0] = 99

	second, err := c.Capture()
	require.NoError(t, err)
	assert.Zero(t, second.Pix[0])
}

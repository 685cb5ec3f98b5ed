package imageutil

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeBase64_StripsDataURI(t *testing.T) {
	raw := pngBase64(t, 40, 30)

	img, err := DecodeBase64("data:image/png;base64," + raw)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())

	img, err = DecodeBase64(raw)
	require.NoError(t, err)
	assert.Equal(t, 30, img.Bounds().Dy())

	_, err = DecodeBase64("data:image/png;base64,!!!")
	assert.Error(t, err)
}

func TestCrop_ClampsToBounds(t *testing.T) {
	img, err := DecodeBase64(pngBase64(t, 100, 80))
	require.NoError(t, err)

	c, err := Crop(img, 10, 20, 30, 40)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 30, 40), c.Bounds())

	c, err = Crop(img, 90, 70, 50, 50)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), c.Bounds())

	_, err = Crop(img, 200, 200, 10, 10)
	assert.ErrorIs(t, err, ErrEmptyCrop)
}

func TestEncodeJPEG(t *testing.T) {
	img, err := DecodeBase64(pngBase64(t, 16, 16))
	require.NoError(t, err)

	data, err := EncodeJPEG(img)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, data[:2])
}

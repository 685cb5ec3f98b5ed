package imageutil

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/webp"
)

const JPEGQuality = 85

var ErrEmptyCrop = errors.New("imageutil: crop region is empty after clamping")

// DecodeBase64 decodes a base64 image, with or without a data URI prefix.
// WebP, PNG and JPEG are supported.
func DecodeBase64(b64 string) (image.Image, error) {
	if i := strings.Index(b64, ","); i >= 0 {
		b64 = b64[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Crop cuts the (x, y, w, h) region out of img, clamped to its bounds.
func Crop(img image.Image, x, y, w, h float64) (image.Image, error) {
	b := img.Bounds()
	x0 := b.Min.X + max(0, int(x))
	y0 := b.Min.Y + max(0, int(y))
	x1 := min(x0+int(w), b.Max.X)
	y1 := min(y0+int(h), b.Max.Y)

	rect := image.Rect(x0, y0, x1, y1).Intersect(b)
	if rect.Empty() {
		return nil, ErrEmptyCrop
	}

	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out, nil
}

// EncodeJPEG re-encodes img as JPEG at quality 85.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

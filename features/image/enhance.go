// Package image improves photo quality with a fixed enhancement pipeline and
// exposes the enhance conversation.
package image

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// DefaultScale is the upscale factor applied after enhancement.
const DefaultScale = 1.5

// Enhance sharpens, boosts contrast, saturation, and brightness, then
// upscales by scale with Lanczos resampling and a light post-sharpen. The
// result is PNG-encoded.
func Enhance(data []byte, scale float64) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("image decode: %w", err)
	}

	img := imaging.Sharpen(src, 1.0)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.AdjustSaturation(img, 20)
	img = imaging.AdjustBrightness(img, 10)

	if scale > 1 {
		bounds := img.Bounds()
		width := int(float64(bounds.Dx()) * scale)
		height := int(float64(bounds.Dy()) * scale)
		img = imaging.Resize(img, width, height, imaging.Lanczos)
		img = imaging.Sharpen(img, 0.5)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("image encode: %w", err)
	}
	return buf.Bytes(), nil
}

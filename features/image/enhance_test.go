package image

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func fixturePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 3), G: uint8(y * 3), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestEnhanceUpscalesByScale(t *testing.T) {
	in := fixturePNG(t, 40, 30)

	out, err := Enhance(in, 1.5)
	if err != nil {
		t.Fatalf("enhance: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 60 || img.Bounds().Dy() != 45 {
		t.Fatalf("size = %dx%d, want 60x45", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestEnhanceWithoutUpscaleKeepsSize(t *testing.T) {
	in := fixturePNG(t, 40, 30)

	out, err := Enhance(in, 1.0)
	if err != nil {
		t.Fatalf("enhance: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
		t.Fatalf("size = %dx%d, want 40x30", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestEnhanceRejectsGarbage(t *testing.T) {
	if _, err := Enhance([]byte("not an image"), 1.5); err == nil {
		t.Fatal("expected decode error")
	}
}

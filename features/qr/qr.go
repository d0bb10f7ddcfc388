// Package qr provides QR code generation and decoding plus the two
// conversations exposing them.
package qr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	qrcode "github.com/skip2/go-qrcode"
)

// ErrNotFound is returned when the supplied image contains no readable QR code.
var ErrNotFound = errors.New("no QR code found in the image")

const imageSize = 256

// Encode renders text as a PNG QR code.
func Encode(text string) ([]byte, error) {
	png, err := qrcode.Encode(text, qrcode.Low, imageSize)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	return png, nil
}

// Decode extracts the text content of a QR code from raw image bytes.
func Decode(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("qr decode: %w", err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("qr decode: %w", err)
	}
	result, err := zxqrcode.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", ErrNotFound
	}
	return result.GetText(), nil
}

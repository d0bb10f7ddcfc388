package qr

import (
	"context"

	"github.com/m3rciful/toolbot/core/conv"
)

const (
	// KindGenerate identifies the text-to-QR conversation.
	KindGenerate conv.Kind = "qr_generate"
	// KindRead identifies the QR-from-image conversation.
	KindRead conv.Kind = "qr_read"

	stateAwaitText  conv.State = "await_text"
	stateAwaitImage conv.State = "await_image"
)

// GenerateFlow converts one text message into a QR code photo.
func GenerateFlow() *conv.Definition {
	return &conv.Definition{
		Kind:        KindGenerate,
		Command:     "/qrgen",
		Description: "Generate a QR code from text",
		Prompt:      "Please send me the text you want to convert to a QR code:",
		Steps: []conv.Step{{
			State:   stateAwaitText,
			Accepts: conv.TextFilter(),
			Handle:  handleGenerate,
		}},
	}
}

func handleGenerate(ctx context.Context, ev conv.Event, _ *conv.Session, t conv.Transport) (conv.Outcome, error) {
	if err := t.SendText(ctx, ev.ChatID, "Generating QR code for: "+ev.Text); err != nil {
		return conv.Outcome{}, err
	}
	png, err := Encode(ev.Text)
	if err != nil {
		return conv.Outcome{}, conv.Failf(err, "Error generating QR code: %v", err)
	}
	if err := t.SendPhoto(ctx, ev.ChatID, png, "QR code for: "+ev.Text); err != nil {
		return conv.Outcome{}, conv.Failf(err, "Error generating QR code: %v", err)
	}
	if err := t.SendText(ctx, ev.ChatID, "QR code generated successfully!"); err != nil {
		return conv.Outcome{}, err
	}
	return conv.Complete(), nil
}

// ReadFlow decodes a QR code from one received photo.
func ReadFlow() *conv.Definition {
	return &conv.Definition{
		Kind:        KindRead,
		Command:     "/qrread",
		Description: "Read a QR code from an image",
		Prompt:      "Please send me an image containing a QR code to read:",
		Steps: []conv.Step{{
			State:   stateAwaitImage,
			Accepts: conv.PhotoFilter(),
			Handle:  handleRead,
		}},
	}
}

func handleRead(ctx context.Context, ev conv.Event, _ *conv.Session, t conv.Transport) (conv.Outcome, error) {
	data, err := t.PhotoBytes(ctx, ev.Photo)
	if err != nil {
		return conv.Outcome{}, conv.Failf(err, "Error reading QR code: %v", err)
	}
	content, err := Decode(data)
	if err != nil {
		return conv.Outcome{}, conv.Failf(err, "Error reading QR code: %v", err)
	}
	if err := t.SendText(ctx, ev.ChatID, "QR code content: "+content); err != nil {
		return conv.Outcome{}, err
	}
	return conv.Complete(), nil
}

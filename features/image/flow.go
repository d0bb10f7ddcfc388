package image

import (
	"context"

	"github.com/m3rciful/toolbot/core/conv"
)

// Kind identifies the image enhancement conversation.
const Kind conv.Kind = "enhance"

const stateAwaitImage conv.State = "await_image"

// Flow builds the /enhance conversation.
func Flow() *conv.Definition {
	return &conv.Definition{
		Kind:        Kind,
		Command:     "/enhance",
		Description: "Enhance an image quality",
		Prompt:      "Please send me an image to enhance:",
		Steps: []conv.Step{{
			State:   stateAwaitImage,
			Accepts: conv.PhotoFilter(),
			Handle:  handleImage,
		}},
	}
}

func handleImage(ctx context.Context, ev conv.Event, _ *conv.Session, t conv.Transport) (conv.Outcome, error) {
	data, err := t.PhotoBytes(ctx, ev.Photo)
	if err != nil {
		return conv.Outcome{}, conv.Failf(err, "Error enhancing image: %v", err)
	}
	if err := t.SendText(ctx, ev.ChatID, "Enhancing image... This may take a moment."); err != nil {
		return conv.Outcome{}, err
	}
	enhanced, err := Enhance(data, DefaultScale)
	if err != nil {
		return conv.Outcome{}, conv.Failf(err, "Error enhancing image: %v", err)
	}
	if err := t.SendPhoto(ctx, ev.ChatID, enhanced, "Enhanced image"); err != nil {
		return conv.Outcome{}, err
	}
	return conv.Complete(), nil
}

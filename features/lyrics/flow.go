package lyrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/toolbot/core/conv"
)

// Kind identifies the lyrics conversation.
const Kind conv.Kind = "lyrics"

const stateAwaitSong conv.State = "await_song"

// Flow builds the /lyrics conversation around the given client.
func Flow(client *Client) *conv.Definition {
	return &conv.Definition{
		Kind:        Kind,
		Command:     "/lyrics",
		Description: "Get lyrics for a song",
		Prompt:      "Please send me the name of the song you want lyrics for:",
		Steps: []conv.Step{{
			State:   stateAwaitSong,
			Accepts: conv.TextFilter(),
			Handle: func(ctx context.Context, ev conv.Event, s *conv.Session, t conv.Transport) (conv.Outcome, error) {
				return handleSong(ctx, ev, t, client)
			},
		}},
	}
}

func handleSong(ctx context.Context, ev conv.Event, t conv.Transport, client *Client) (conv.Outcome, error) {
	song := ev.Text
	if err := t.SendText(ctx, ev.ChatID, "Searching for lyrics of: "+song); err != nil {
		return conv.Outcome{}, err
	}

	text, err := client.Lookup(ctx, song)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return conv.Outcome{}, conv.Failf(err, "No lyrics found for '%s'", song)
		}
		return conv.Outcome{}, conv.Failf(err, "Error extracting lyrics: %v", err)
	}

	chunks := Chunks(text, ChunkSize)
	if len(chunks) == 1 {
		msg := fmt.Sprintf("Lyrics for '%s':\n\n%s", song, chunks[0])
		if err := t.SendText(ctx, ev.ChatID, msg); err != nil {
			return conv.Outcome{}, err
		}
		return conv.Complete(), nil
	}
	for i, chunk := range chunks {
		msg := fmt.Sprintf("Lyrics for '%s' (Part %d/%d):\n\n%s", song, i+1, len(chunks), chunk)
		if err := t.SendText(ctx, ev.ChatID, msg); err != nil {
			return conv.Outcome{}, err
		}
	}
	return conv.Complete(), nil
}

package router

import (
	"context"
	"strings"

	"github.com/m3rciful/toolbot/core/conv"

	tele "gopkg.in/telebot.v4"
)

// Conversations is the minimal interface the routers need from the
// conversation engine.
type Conversations interface {
	InProgress(chatID int64) bool
	Dispatch(ctx context.Context, ev conv.Event) error
}

func chatID(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	return 0
}

func baseEvent(c tele.Context) conv.Event {
	ev := conv.Event{ChatID: chatID(c)}
	if u := c.Sender(); u != nil {
		ev.UserID = u.ID
	}
	return ev
}

// CommandEvent builds an entry/cancel command event from a command update.
func CommandEvent(c tele.Context, command string) conv.Event {
	ev := baseEvent(c)
	ev.Type = conv.EventCommand
	ev.Command = command
	ev.Text = c.Text()
	return ev
}

// TextEvent builds a plain text event.
func TextEvent(c tele.Context) conv.Event {
	ev := baseEvent(c)
	ev.Type = conv.EventText
	ev.Text = c.Text()
	return ev
}

// PhotoEvent builds an image event referencing the attached photo.
func PhotoEvent(c tele.Context) conv.Event {
	ev := baseEvent(c)
	ev.Type = conv.EventPhoto
	if msg := c.Message(); msg != nil && msg.Photo != nil {
		ev.Photo = conv.PhotoRef{FileID: msg.Photo.FileID}
	}
	return ev
}

// CallbackEvent builds a callback event carrying the raw payload.
func CallbackEvent(c tele.Context) conv.Event {
	ev := baseEvent(c)
	ev.Type = conv.EventCallback
	if cb := c.Callback(); cb != nil {
		ev.Callback = strings.TrimPrefix(cb.Data, "\f")
		if cb.Message != nil {
			ev.MessageID = cb.Message.ID
		}
	}
	return ev
}

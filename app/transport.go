package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/m3rciful/toolbot/core/conv"
	"github.com/m3rciful/toolbot/core/telegram/keyboard"
	"github.com/m3rciful/toolbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var errNotBound = errors.New("telegram transport not bound to a bot")

// botTransport adapts a running telebot instance to conv.Transport. The bot
// is bound once the runtime starts; all outbound calls go through the
// retrying sender.
type botTransport struct {
	bot atomic.Pointer[tele.Bot]
	snd *sender.Sender
}

func newBotTransport(snd *sender.Sender) *botTransport {
	return &botTransport{snd: snd}
}

// Bind attaches the live bot once the runtime has built it.
func (t *botTransport) Bind(b *tele.Bot) {
	t.bot.Store(b)
}

func (t *botTransport) client() (*tele.Bot, error) {
	b := t.bot.Load()
	if b == nil {
		return nil, errNotBound
	}
	return b, nil
}

func (t *botTransport) SendText(ctx context.Context, chatID int64, text string) error {
	b, err := t.client()
	if err != nil {
		return err
	}
	return t.snd.Do(ctx, "send.text", "sendMessage", func() error {
		_, err := b.Send(tele.ChatID(chatID), text)
		return err
	})
}

func (t *botTransport) SendChoices(ctx context.Context, chatID int64, text string, choices []conv.Choice) error {
	b, err := t.client()
	if err != nil {
		return err
	}
	buttons := make([]keyboard.InlineBtn, 0, len(choices))
	for _, choice := range choices {
		buttons = append(buttons, keyboard.InlineBtn{Text: choice.Label, Data: choice.Data})
	}
	markup := keyboard.DataButtons(buttons)
	return t.snd.Do(ctx, "send.choices", "sendMessage", func() error {
		_, err := b.Send(tele.ChatID(chatID), text, markup)
		return err
	})
}

func (t *botTransport) SendPhoto(ctx context.Context, chatID int64, image []byte, caption string) error {
	b, err := t.client()
	if err != nil {
		return err
	}
	return t.snd.Do(ctx, "send.photo", "sendPhoto", func() error {
		photo := &tele.Photo{File: tele.FromReader(bytes.NewReader(image)), Caption: caption}
		_, err := b.Send(tele.ChatID(chatID), photo)
		return err
	})
}

func (t *botTransport) SendAudio(ctx context.Context, chatID int64, path, title, caption string) error {
	b, err := t.client()
	if err != nil {
		return err
	}
	return t.snd.Do(ctx, "send.audio", "sendAudio", func() error {
		audio := &tele.Audio{
			File:     tele.FromDisk(path),
			Title:    title,
			Caption:  caption,
			FileName: filepath.Base(path),
		}
		_, err := b.Send(tele.ChatID(chatID), audio)
		return err
	})
}

func (t *botTransport) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	b, err := t.client()
	if err != nil {
		return err
	}
	msg := &tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	return t.snd.Do(ctx, "edit.text", "editMessageText", func() error {
		_, err := b.Edit(msg, text)
		return err
	})
}

func (t *botTransport) PhotoBytes(ctx context.Context, ref conv.PhotoRef) ([]byte, error) {
	b, err := t.client()
	if err != nil {
		return nil, err
	}
	var data []byte
	err = t.snd.Do(ctx, "fetch.photo", "getFile", func() error {
		rc, err := b.File(&tele.File{FileID: ref.FileID})
		if err != nil {
			return err
		}
		defer rc.Close()
		data, err = io.ReadAll(rc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

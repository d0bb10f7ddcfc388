package helpers

import (
	"sync/atomic"

	"github.com/m3rciful/toolbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalSender atomic.Pointer[sender.Sender]

// SetSender wires the retrying sender used by helper functions.
func SetSender(s *sender.Sender) {
	globalSender.Store(s)
}

func currentSender() *sender.Sender {
	return globalSender.Load()
}

func doSend(c tele.Context, action, endpoint string, run func() error) error {
	snd := currentSender()
	if snd == nil {
		return run()
	}
	return snd.Do(BuildContext(c), action, endpoint, run)
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return doSend(c, "send.text", "sendMessage", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// SendMD sends a message with Markdown parse mode and optional reply markup.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	return SendText(c, text, &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: rm})
}

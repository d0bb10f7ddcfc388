// Package keyboard builds reply markups for inline selections.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes a convenience wrapper for inline button properties.
type InlineBtn struct {
	Text string
	Data string
}

// DataButtons builds an inline keyboard from label/data buttons, one per row.
// The data is delivered back verbatim in the callback, without telebot's
// unique-key encoding.
func DataButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []tele.InlineButton{{Text: b.Text, Data: b.Data}})
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

// Package conv implements multi-step conversations for chat bots: a per-chat
// session store, declarative step definitions with input filters, and a
// dispatcher that routes inbound events to the active step. It is
// transport-agnostic so conversations can be driven and tested without a
// running bot.
package conv

import (
	"context"
	"strings"
)

// Kind identifies one registered conversation (e.g. "download").
type Kind string

// State identifies a single step within a conversation.
type State string

// EventType enumerates the inbound event shapes the dispatcher understands.
type EventType int

const (
	// EventCommand is a slash command, possibly with trailing arguments.
	EventCommand EventType = iota
	// EventText is a plain text message.
	EventText
	// EventPhoto is a message carrying an image attachment.
	EventPhoto
	// EventCallback is an inline keyboard button press.
	EventCallback
)

func (t EventType) String() string {
	switch t {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventPhoto:
		return "photo"
	case EventCallback:
		return "callback"
	}
	return "unknown"
}

// PhotoRef is an opaque reference to an image resolvable through the Transport.
type PhotoRef struct {
	FileID string
}

// Event is one inbound update, abstracted from the chat transport.
type Event struct {
	Type   EventType
	ChatID int64
	UserID int64

	// Command holds the command name including the leading slash.
	Command string
	// Text holds the message text for EventText events.
	Text string
	// Photo references the attached image for EventPhoto events.
	Photo PhotoRef
	// Callback holds the raw callback payload for EventCallback events.
	Callback string
	// MessageID identifies the message the callback keyboard is attached to.
	MessageID int
}

// Choice is one selectable entry of an inline list: a visible label and the
// opaque payload delivered back as a callback event.
type Choice struct {
	Label string
	Data  string
}

// Transport carries outbound replies and resolves attachments. Implementations
// wrap the chat platform client.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendChoices(ctx context.Context, chatID int64, text string, choices []Choice) error
	SendPhoto(ctx context.Context, chatID int64, image []byte, caption string) error
	SendAudio(ctx context.Context, chatID int64, path, title, caption string) error
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	PhotoBytes(ctx context.Context, ref PhotoRef) ([]byte, error)
}

// Filter declares which event shape a step accepts. Filters are checked by the
// dispatcher before a step handler runs; a non-matching event is ignored
// without touching the session.
type Filter struct {
	Type EventType
	// CallbackPrefix restricts EventCallback filters to payloads with this prefix.
	CallbackPrefix string
}

// TextFilter accepts plain text messages, excluding commands.
func TextFilter() Filter {
	return Filter{Type: EventText}
}

// PhotoFilter accepts messages with an image attachment.
func PhotoFilter() Filter {
	return Filter{Type: EventPhoto}
}

// CallbackFilter accepts callback events whose payload starts with prefix.
func CallbackFilter(prefix string) Filter {
	return Filter{Type: EventCallback, CallbackPrefix: prefix}
}

// Matches reports whether the event satisfies the filter.
func (f Filter) Matches(ev Event) bool {
	if ev.Type != f.Type {
		return false
	}
	switch f.Type {
	case EventText:
		return !strings.HasPrefix(strings.TrimSpace(ev.Text), "/")
	case EventCallback:
		return f.CallbackPrefix == "" || strings.HasPrefix(ev.Callback, f.CallbackPrefix)
	}
	return true
}

// HandlerFunc processes one event for the step it is attached to. It reads
// cross-step data from the session and reports what happens next through the
// returned Outcome. A non-nil error terminates the conversation as failed.
type HandlerFunc func(ctx context.Context, ev Event, s *Session, t Transport) (Outcome, error)

// Step is one point of a conversation awaiting a specific input shape.
type Step struct {
	State   State
	Accepts Filter
	Handle  HandlerFunc
}

// Definition declares a complete linear conversation: the entry command, the
// prompt sent on entry, and the ordered steps.
type Definition struct {
	Kind        Kind
	Command     string
	Description string
	Prompt      string
	Steps       []Step
}

func (d *Definition) first() (State, bool) {
	if len(d.Steps) == 0 {
		return "", false
	}
	return d.Steps[0].State, true
}

func (d *Definition) step(st State) (Step, bool) {
	for _, s := range d.Steps {
		if s.State == st {
			return s, true
		}
	}
	return Step{}, false
}

// Outcome describes the result of a step handler.
type Outcome struct {
	next  State
	patch map[string]any
}

// Continue advances the session to the next step, merging patch into scratch.
func Continue(next State, patch map[string]any) Outcome {
	return Outcome{next: next, patch: patch}
}

// Complete terminates the conversation successfully.
func Complete() Outcome {
	return Outcome{}
}

package conv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/toolbot/core/logger"
)

const (
	// CancelCommand aborts the active conversation from any step.
	CancelCommand = "/cancel"

	cancelledReply   = "Operation cancelled."
	nothingToCancel  = "Nothing to cancel."
	genericFailReply = "Sorry, an error occurred. Please try again later."
)

// EndReason records how a conversation instance finished.
type EndReason string

const (
	// EndCompleted means the last step returned Complete.
	EndCompleted EndReason = "completed"
	// EndFailed means a step handler returned an error.
	EndFailed EndReason = "failed"
	// EndCancelled means the user issued the cancel command.
	EndCancelled EndReason = "cancelled"
	// EndReplaced means a new entry command displaced the session.
	EndReplaced EndReason = "replaced"
)

// Record summarizes a finished conversation instance.
type Record struct {
	ChatID    int64
	Kind      Kind
	Reason    EndReason
	StartedAt time.Time
	Duration  time.Duration
}

// Options configure an Engine.
type Options struct {
	Transport Transport
	// OnEnd is invoked after every session teardown, whatever the reason.
	OnEnd func(ctx context.Context, rec Record)
}

// Engine routes inbound events to conversation steps. Events for the same
// chat are serialized by a per-chat lock held across the whole handler,
// including blocking leaf work; events for different chats run in parallel.
type Engine struct {
	store     *Store
	transport Transport
	onEnd     func(ctx context.Context, rec Record)

	defs      map[Kind]*Definition
	byCommand map[string]*Definition

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// NewEngine creates an engine with no registered conversations.
func NewEngine(opts Options) *Engine {
	return &Engine{
		store:     NewStore(),
		transport: opts.Transport,
		onEnd:     opts.OnEnd,
		defs:      make(map[Kind]*Definition),
		byCommand: make(map[string]*Definition),
	}
}

// Register adds a conversation definition. Kinds and entry commands must be
// unique across all registered definitions.
func (e *Engine) Register(def *Definition) error {
	if def == nil || def.Kind == "" || len(def.Steps) == 0 {
		return fmt.Errorf("conv: invalid definition")
	}
	if !strings.HasPrefix(def.Command, "/") {
		return fmt.Errorf("conv: entry command %q must start with a slash", def.Command)
	}
	if def.Command == CancelCommand {
		return fmt.Errorf("conv: entry command %q is reserved", def.Command)
	}
	if _, exists := e.defs[def.Kind]; exists {
		return fmt.Errorf("conv: kind already registered: %s", def.Kind)
	}
	if _, exists := e.byCommand[def.Command]; exists {
		return fmt.Errorf("conv: entry command already registered: %s", def.Command)
	}
	e.defs[def.Kind] = def
	e.byCommand[def.Command] = def
	return nil
}

// Definitions returns registered definitions ordered by entry command.
func (e *Engine) Definitions() []*Definition {
	out := make([]*Definition, 0, len(e.defs))
	for _, d := range e.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

// Active returns the kind of the chat's in-progress conversation, if any.
func (e *Engine) Active(chatID int64) (Kind, bool) {
	s, ok := e.store.Get(chatID)
	if !ok {
		return "", false
	}
	return s.Kind, true
}

// InProgress reports whether the chat has an active conversation.
func (e *Engine) InProgress(chatID int64) bool {
	_, ok := e.store.Get(chatID)
	return ok
}

// Dispatch routes one inbound event:
//   - a registered entry command begins its conversation, force-ending any
//     session already in progress (last entry wins),
//   - the cancel command tears down the active session,
//   - any other event goes to the active session's current step when it
//     matches the step's input filter, and is silently ignored otherwise.
func (e *Engine) Dispatch(ctx context.Context, ev Event) error {
	lock := e.chatLock(ev.ChatID)
	lock.Lock()
	defer lock.Unlock()

	if ev.Type == EventCommand {
		if ev.Command == CancelCommand {
			return e.cancelLocked(ctx, ev)
		}
		if def, ok := e.byCommand[ev.Command]; ok {
			return e.beginLocked(ctx, def, ev)
		}
		return nil
	}

	sess, ok := e.store.Get(ev.ChatID)
	if !ok {
		return nil
	}
	def := e.defs[sess.Kind]
	step, ok := def.step(sess.Step)
	if !ok {
		// Unknown step means the definition changed under a live session.
		e.endLocked(ctx, sess, EndFailed)
		return fmt.Errorf("conv: session %d at unknown step %q", ev.ChatID, sess.Step)
	}

	if !step.Accepts.Matches(ev) {
		logger.LogEvent(ctx, logger.Conv, slog.LevelDebug, "step.skip",
			slog.Int64("chat_id", ev.ChatID),
			slog.String("kind", string(sess.Kind)),
			slog.String("step", string(sess.Step)),
			slog.String("got", ev.Type.String()),
		)
		return nil
	}

	out, err := step.Handle(ctx, ev, sess, e.transport)
	if err != nil {
		e.replyFailure(ctx, ev.ChatID, err)
		e.endLocked(ctx, sess, EndFailed)
		return err
	}

	if out.next != "" {
		if err := e.store.Advance(ev.ChatID, out.next, out.patch); err != nil {
			return err
		}
		logger.LogEvent(ctx, logger.Conv, slog.LevelDebug, "step.advance",
			slog.Int64("chat_id", ev.ChatID),
			slog.String("kind", string(sess.Kind)),
			slog.String("from", string(step.State)),
			slog.String("to", string(out.next)),
		)
		return nil
	}

	e.endLocked(ctx, sess, EndCompleted)
	return nil
}

func (e *Engine) beginLocked(ctx context.Context, def *Definition, ev Event) error {
	if stale, ok := e.store.Get(ev.ChatID); ok {
		e.endLocked(ctx, stale, EndReplaced)
	}

	first, ok := def.first()
	if !ok {
		return fmt.Errorf("conv: definition %s has no steps", def.Kind)
	}
	if _, err := e.store.Begin(ev.ChatID, def.Kind, first); err != nil {
		return err
	}
	logger.LogEvent(ctx, logger.Conv, slog.LevelInfo, "conversation.begin",
		slog.Int64("chat_id", ev.ChatID),
		slog.String("kind", string(def.Kind)),
	)
	if def.Prompt != "" {
		if err := e.transport.SendText(ctx, ev.ChatID, def.Prompt); err != nil {
			logger.LogEvent(ctx, logger.Conv, slog.LevelWarn, "prompt.send_failed",
				slog.Int64("chat_id", ev.ChatID),
				slog.String("err", err.Error()),
			)
		}
	}
	return nil
}

func (e *Engine) cancelLocked(ctx context.Context, ev Event) error {
	sess, ok := e.store.Get(ev.ChatID)
	if !ok {
		return e.transport.SendText(ctx, ev.ChatID, nothingToCancel)
	}
	if err := e.transport.SendText(ctx, ev.ChatID, cancelledReply); err != nil {
		logger.LogEvent(ctx, logger.Conv, slog.LevelWarn, "cancel.send_failed",
			slog.Int64("chat_id", ev.ChatID),
			slog.String("err", err.Error()),
		)
	}
	e.endLocked(ctx, sess, EndCancelled)
	return nil
}

// replyFailure sends the user-visible text for a failed step. Send errors are
// swallowed so a delivery problem never masks the original failure.
func (e *Engine) replyFailure(ctx context.Context, chatID int64, err error) {
	reply := genericFailReply
	var f *Failure
	if errors.As(err, &f) && f.Reply != "" {
		reply = f.Reply
	}
	if sendErr := e.transport.SendText(ctx, chatID, reply); sendErr != nil {
		logger.LogEvent(ctx, logger.Conv, slog.LevelWarn, "failure.send_failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", sendErr.Error()),
		)
	}
}

func (e *Engine) endLocked(ctx context.Context, sess *Session, reason EndReason) {
	if _, ok := e.store.End(sess.ChatID); !ok {
		return
	}
	rec := Record{
		ChatID:    sess.ChatID,
		Kind:      sess.Kind,
		Reason:    reason,
		StartedAt: sess.StartedAt,
		Duration:  time.Since(sess.StartedAt),
	}
	logger.LogEvent(ctx, logger.Conv, slog.LevelInfo, "conversation.end",
		slog.Int64("chat_id", rec.ChatID),
		slog.String("kind", string(rec.Kind)),
		slog.String("reason", string(reason)),
		slog.Duration("duration", logger.RoundMS(rec.Duration)),
	)
	if e.onEnd != nil {
		e.onEnd(ctx, rec)
	}
}

func (e *Engine) chatLock(chatID int64) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	if e.locks == nil {
		e.locks = make(map[int64]*sync.Mutex)
	}
	l, ok := e.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[chatID] = l
	}
	return l
}

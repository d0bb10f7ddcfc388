package conv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTransport struct {
	mu      sync.Mutex
	texts   []string
	choices []Choice
	edits   []string
}

func (f *fakeTransport) SendText(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeTransport) SendChoices(_ context.Context, _ int64, text string, choices []Choice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.choices = append(f.choices, choices...)
	return nil
}

func (f *fakeTransport) SendPhoto(_ context.Context, _ int64, _ []byte, caption string) error {
	return f.SendText(nil, 0, caption)
}

func (f *fakeTransport) SendAudio(_ context.Context, _ int64, _, _, caption string) error {
	return f.SendText(nil, 0, caption)
}

func (f *fakeTransport) EditText(_ context.Context, _ int64, _ int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeTransport) PhotoBytes(_ context.Context, _ PhotoRef) ([]byte, error) {
	return nil, errors.New("no photos in this test")
}

func (f *fakeTransport) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		t.Fatal("expected at least one sent text")
	}
	return f.texts[len(f.texts)-1]
}

func echoDefinition(kind Kind, command string) *Definition {
	return &Definition{
		Kind:    kind,
		Command: command,
		Prompt:  "send me something",
		Steps: []Step{{
			State:   "await_text",
			Accepts: TextFilter(),
			Handle: func(ctx context.Context, ev Event, _ *Session, t Transport) (Outcome, error) {
				if err := t.SendText(ctx, ev.ChatID, "echo: "+ev.Text); err != nil {
					return Outcome{}, err
				}
				return Complete(), nil
			},
		}},
	}
}

func newTestEngine(t *testing.T, tr Transport, onEnd func(context.Context, Record), defs ...*Definition) *Engine {
	t.Helper()
	e := NewEngine(Options{Transport: tr, OnEnd: onEnd})
	for _, def := range defs {
		if err := e.Register(def); err != nil {
			t.Fatalf("register %s: %v", def.Command, err)
		}
	}
	return e
}

func TestRegisterValidation(t *testing.T) {
	e := NewEngine(Options{Transport: &fakeTransport{}})

	if err := e.Register(&Definition{Kind: "x", Command: "nope", Steps: []Step{{State: "s"}}}); err == nil {
		t.Fatal("expected error for command without slash")
	}
	if err := e.Register(&Definition{Kind: "x", Command: CancelCommand, Steps: []Step{{State: "s"}}}); err == nil {
		t.Fatal("expected error for reserved cancel command")
	}
	if err := e.Register(echoDefinition("echo", "/echo")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := e.Register(echoDefinition("other", "/echo")); err == nil {
		t.Fatal("expected duplicate command error")
	}
	if err := e.Register(echoDefinition("echo", "/echo2")); err == nil {
		t.Fatal("expected duplicate kind error")
	}
}

func TestEntryCommandBeginsSessionAndPrompts(t *testing.T) {
	tr := &fakeTransport{}
	e := newTestEngine(t, tr, nil, echoDefinition("echo", "/echo"))
	ctx := context.Background()

	if err := e.Dispatch(ctx, Event{Type: EventCommand, ChatID: 5, Command: "/echo"}); err != nil {
		t.Fatalf("dispatch entry: %v", err)
	}
	if !e.InProgress(5) {
		t.Fatal("expected session after entry command")
	}
	if got := tr.lastText(t); got != "send me something" {
		t.Fatalf("prompt = %q", got)
	}
}

func TestStepCompletesAndRemovesSession(t *testing.T) {
	tr := &fakeTransport{}
	var ended []Record
	e := newTestEngine(t, tr, func(_ context.Context, rec Record) { ended = append(ended, rec) },
		echoDefinition("echo", "/echo"))
	ctx := context.Background()

	_ = e.Dispatch(ctx, Event{Type: EventCommand, ChatID: 5, Command: "/echo"})
	if err := e.Dispatch(ctx, Event{Type: EventText, ChatID: 5, Text: "hi"}); err != nil {
		t.Fatalf("dispatch text: %v", err)
	}

	if got := tr.lastText(t); got != "echo: hi" {
		t.Fatalf("reply = %q", got)
	}
	if e.InProgress(5) {
		t.Fatal("session must be gone after Complete")
	}
	if len(ended) != 1 || ended[0].Reason != EndCompleted || ended[0].Kind != "echo" {
		t.Fatalf("end records = %+v", ended)
	}
}

func TestFilterMismatchIgnoredWithoutMutation(t *testing.T) {
	tr := &fakeTransport{}
	e := newTestEngine(t, tr, nil, echoDefinition("echo", "/echo"))
	ctx := context.Background()

	_ = e.Dispatch(ctx, Event{Type: EventCommand, ChatID: 5, Command: "/echo"})
	sent := len(tr.texts)

	// A photo does not match the text filter.
	if err := e.Dispatch(ctx, Event{Type: EventPhoto, ChatID: 5}); err != nil {
		t.Fatalf("dispatch photo: %v", err)
	}
	// Command-looking text is excluded by the text filter too.
	if err := e.Dispatch(ctx, Event{Type: EventText, ChatID: 5, Text: "/looks_like_command"}); err != nil {
		t.Fatalf("dispatch command-like text: %v", err)
	}

	if !e.InProgress(5) {
		t.Fatal("session must survive ignored events")
	}
	if len(tr.texts) != sent {
		t.Fatalf("ignored events must not reply, sent %d extra", len(tr.texts)-sent)
	}
}

func TestHandlerErrorRepliesAndFails(t *testing.T) {
	tr := &fakeTransport{}
	var ended []Record
	def := &Definition{
		Kind:    "boom",
		Command: "/boom",
		Steps: []Step{{
			State:   "await_text",
			Accepts: TextFilter(),
			Handle: func(context.Context, Event, *Session, Transport) (Outcome, error) {
				return Outcome{}, Failf(errors.New("leaf exploded"), "Error doing the thing: %v", "leaf exploded")
			},
		}},
	}
	e := newTestEngine(t, tr, func(_ context.Context, rec Record) { ended = append(ended, rec) }, def)
	ctx := context.Background()

	_ = e.Dispatch(ctx, Event{Type: EventCommand, ChatID: 5, Command: "/boom"})
	err := e.Dispatch(ctx, Event{Type: EventText, ChatID: 5, Text: "go"})
	if err == nil {
		t.Fatal("expected handler error to propagate")
	}
	if got := tr.lastText(t); !strings.HasPrefix(got, "Error doing the thing") {
		t.Fatalf("failure reply = %q", got)
	}
	if e.InProgress(5) {
		t.Fatal("session must be gone after failure")
	}
	if len(ended) != 1 || ended[0].Reason != EndFailed {
		t.Fatalf("end records = %+v", ended)
	}
}

func TestGenericFailureReply(t *testing.T) {
	tr := &fakeTransport{}
	def := &Definition{
		Kind:    "boom",
		Command: "/boom",
		Steps: []Step{{
			State:   "await_text",
			Accepts: TextFilter(),
			Handle: func(context.Context, Event, *Session, Transport) (Outcome, error) {
				return Outcome{}, errors.New("plain error")
			},
		}},
	}
	e := newTestEngine(t, tr, nil, def)
	ctx := context.Background()

	_ = e.Dispatch(ctx, Event{Type: EventCommand, ChatID: 5, Command: "/boom"})
	if err := e.Dispatch(ctx, Event{Type: EventText, ChatID: 5, Text: "go"}); err == nil {
		t.Fatal("expected error")
	}
	if got := tr.lastText(t); got != "Sorry, an error occurred. Please try again later." {
		t.Fatalf("generic reply = %q", got)
	}
}

func TestCancelEndsSession(t *testing.T) {
	tr := &fakeTransport{}
	var ended []Record
	e := newTestEngine(t, tr, func(_ context.Context, rec Record) { ended = append(ended, rec) },
		echoDefinition("echo", "/echo"))
	ctx := context.Background()

	_ = e.Dispatch(ctx, Event{Type: EventCommand, ChatID: 5, Command: "/echo"})
	if err := e.Dispatch(ctx, Event{Type: EventCommand, ChatID: 5, Command: CancelCommand}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := tr.lastText(t); got != "Operation cancelled." {
		t.Fatalf("cancel reply = %q", got)
	}
	if e.InProgress(5) {
		t.Fatal("session must be gone after cancel")
	}
	if len(ended) != 1 || ended[0].Reason != EndCancelled {
		t.Fatalf("end records = %+v", ended)
	}
}

func TestCancelWithoutSession(t *testing.T) {
	tr := &fakeTransport{}
	e := newTestEngine(t, tr, nil, echoDefinition("echo", "/echo"))

	if err := e.Dispatch(context.Background(), Event{Type: EventCommand, ChatID: 5, Command: CancelCommand}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := tr.lastText(t); got != "Nothing to cancel." {
		t.Fatalf("reply = %q", got)
	}
}

func TestLastEntryWinsReplacesSession(t *testing.T) {
	tr := &fakeTransport{}
	var ended []Record
	e := newTestEngine(t, tr, func(_ context.Context, rec Record) { ended = append(ended, rec) },
		echoDefinition("echo", "/echo"), echoDefinition("other", "/other"))
	ctx := context.Background()

	_ = e.Dispatch(ctx, Event{Type: EventCommand, ChatID: 5, Command: "/echo"})
	if err := e.Dispatch(ctx, Event{Type: EventCommand, ChatID: 5, Command: "/other"}); err != nil {
		t.Fatalf("second entry: %v", err)
	}

	kind, ok := e.Active(5)
	if !ok || kind != "other" {
		t.Fatalf("active = %q ok=%v, want other", kind, ok)
	}
	if len(ended) != 1 || ended[0].Reason != EndReplaced || ended[0].Kind != "echo" {
		t.Fatalf("end records = %+v", ended)
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	tr := &fakeTransport{}
	e := newTestEngine(t, tr, nil, echoDefinition("echo", "/echo"))

	if err := e.Dispatch(context.Background(), Event{Type: EventCommand, ChatID: 5, Command: "/unknown"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if e.InProgress(5) {
		t.Fatal("unknown command must not create a session")
	}
	if len(tr.texts) != 0 {
		t.Fatalf("unknown command must not reply, got %v", tr.texts)
	}
}

func TestEventsWithoutSessionIgnored(t *testing.T) {
	tr := &fakeTransport{}
	e := newTestEngine(t, tr, nil, echoDefinition("echo", "/echo"))

	if err := e.Dispatch(context.Background(), Event{Type: EventText, ChatID: 5, Text: "hi"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(tr.texts) != 0 {
		t.Fatalf("expected no replies, got %v", tr.texts)
	}
}

func TestMultiStepScratchFlow(t *testing.T) {
	tr := &fakeTransport{}
	def := &Definition{
		Kind:    "pair",
		Command: "/pair",
		Steps: []Step{
			{
				State:   "first",
				Accepts: TextFilter(),
				Handle: func(_ context.Context, ev Event, _ *Session, _ Transport) (Outcome, error) {
					return Continue("second", map[string]any{"first": ev.Text}), nil
				},
			},
			{
				State:   "second",
				Accepts: TextFilter(),
				Handle: func(ctx context.Context, ev Event, s *Session, t Transport) (Outcome, error) {
					first, _ := s.Value("first")
					if err := t.SendText(ctx, ev.ChatID, first.(string)+"+"+ev.Text); err != nil {
						return Outcome{}, err
					}
					return Complete(), nil
				},
			},
		},
	}
	e := newTestEngine(t, tr, nil, def)
	ctx := context.Background()

	_ = e.Dispatch(ctx, Event{Type: EventCommand, ChatID: 3, Command: "/pair"})
	if err := e.Dispatch(ctx, Event{Type: EventText, ChatID: 3, Text: "a"}); err != nil {
		t.Fatalf("first step: %v", err)
	}
	if !e.InProgress(3) {
		t.Fatal("expected session between steps")
	}
	if err := e.Dispatch(ctx, Event{Type: EventText, ChatID: 3, Text: "b"}); err != nil {
		t.Fatalf("second step: %v", err)
	}
	if got := tr.lastText(t); got != "a+b" {
		t.Fatalf("combined = %q", got)
	}
	if e.InProgress(3) {
		t.Fatal("expected session gone")
	}
}

func TestDispatchSerializesSameChat(t *testing.T) {
	tr := &fakeTransport{}
	var inFlight, overlaps int32
	def := &Definition{
		Kind:    "slow",
		Command: "/slow",
		Steps: []Step{{
			State:   "await_text",
			Accepts: TextFilter(),
			Handle: func(context.Context, Event, *Session, Transport) (Outcome, error) {
				if atomic.AddInt32(&inFlight, 1) > 1 {
					atomic.AddInt32(&overlaps, 1)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return Complete(), nil
			},
		}},
	}
	e := newTestEngine(t, tr, nil, def)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Dispatch(ctx, Event{Type: EventCommand, ChatID: 9, Command: "/slow"})
			_ = e.Dispatch(ctx, Event{Type: EventText, ChatID: 9, Text: "go"})
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&overlaps); n != 0 {
		t.Fatalf("handlers for one chat ran concurrently %d times", n)
	}
	// Whatever the interleaving, the chat ends with at most one session.
	if kind, ok := e.Active(9); ok && kind != "slow" {
		t.Fatalf("unexpected active kind %q", kind)
	}
}

func TestDispatchParallelAcrossChats(t *testing.T) {
	tr := &fakeTransport{}
	entered := make(chan struct{})
	release := make(chan struct{})
	def := &Definition{
		Kind:    "gate",
		Command: "/gate",
		Steps: []Step{{
			State:   "await_text",
			Accepts: TextFilter(),
			Handle: func(_ context.Context, ev Event, _ *Session, _ Transport) (Outcome, error) {
				if ev.ChatID == 1 {
					close(entered)
					<-release
				}
				return Complete(), nil
			},
		}},
	}
	e := newTestEngine(t, tr, nil, def)
	ctx := context.Background()

	_ = e.Dispatch(ctx, Event{Type: EventCommand, ChatID: 1, Command: "/gate"})
	done := make(chan error, 1)
	go func() {
		done <- e.Dispatch(ctx, Event{Type: EventText, ChatID: 1, Text: "block"})
	}()
	<-entered

	// Chat 2 must complete its whole conversation while chat 1 is blocked.
	_ = e.Dispatch(ctx, Event{Type: EventCommand, ChatID: 2, Command: "/gate"})
	if err := e.Dispatch(ctx, Event{Type: EventText, ChatID: 2, Text: "fast"}); err != nil {
		t.Fatalf("chat 2 dispatch: %v", err)
	}
	if e.InProgress(2) {
		t.Fatal("chat 2 must finish independently of chat 1")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("chat 1 dispatch: %v", err)
	}
	if e.InProgress(1) {
		t.Fatal("chat 1 must finish after release")
	}
}

func TestWrappedFailureKeepsReply(t *testing.T) {
	tr := &fakeTransport{}
	def := &Definition{
		Kind:    "wrap",
		Command: "/wrap",
		Steps: []Step{{
			State:   "await_text",
			Accepts: TextFilter(),
			Handle: func(context.Context, Event, *Session, Transport) (Outcome, error) {
				return Outcome{}, fmt.Errorf("step context: %w",
					Failf(errors.New("leaf cause"), "Custom failure reply."))
			},
		}},
	}
	e := newTestEngine(t, tr, nil, def)
	ctx := context.Background()

	_ = e.Dispatch(ctx, Event{Type: EventCommand, ChatID: 5, Command: "/wrap"})
	if err := e.Dispatch(ctx, Event{Type: EventText, ChatID: 5, Text: "go"}); err == nil {
		t.Fatal("expected error")
	}
	if got := tr.lastText(t); got != "Custom failure reply." {
		t.Fatalf("reply = %q, want the wrapped failure's reply", got)
	}
}

func TestCallbackPrefixFilter(t *testing.T) {
	tr := &fakeTransport{}
	handled := 0
	def := &Definition{
		Kind:    "pick",
		Command: "/pick",
		Steps: []Step{{
			State:   "await_pick",
			Accepts: CallbackFilter("pick_"),
			Handle: func(context.Context, Event, *Session, Transport) (Outcome, error) {
				handled++
				return Complete(), nil
			},
		}},
	}
	e := newTestEngine(t, tr, nil, def)
	ctx := context.Background()

	_ = e.Dispatch(ctx, Event{Type: EventCommand, ChatID: 4, Command: "/pick"})
	if err := e.Dispatch(ctx, Event{Type: EventCallback, ChatID: 4, Callback: "other_0"}); err != nil {
		t.Fatalf("mismatched callback: %v", err)
	}
	if handled != 0 || !e.InProgress(4) {
		t.Fatal("mismatched callback must be ignored")
	}
	if err := e.Dispatch(ctx, Event{Type: EventCallback, ChatID: 4, Callback: "pick_0"}); err != nil {
		t.Fatalf("matching callback: %v", err)
	}
	if handled != 1 || e.InProgress(4) {
		t.Fatal("matching callback must run the step and complete")
	}
}

package qr

import (
	"context"
	"strings"
	"testing"

	"github.com/m3rciful/toolbot/core/conv"
)

type fakeTransport struct {
	texts     []string
	photos    [][]byte
	captions  []string
	photoData []byte
}

func (f *fakeTransport) SendText(_ context.Context, _ int64, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeTransport) SendChoices(_ context.Context, _ int64, text string, _ []conv.Choice) error {
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeTransport) SendPhoto(_ context.Context, _ int64, data []byte, caption string) error {
	f.photos = append(f.photos, data)
	f.captions = append(f.captions, caption)
	return nil
}

func (f *fakeTransport) SendAudio(_ context.Context, _ int64, _, _, _ string) error { return nil }

func (f *fakeTransport) EditText(_ context.Context, _ int64, _ int, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeTransport) PhotoBytes(_ context.Context, _ conv.PhotoRef) ([]byte, error) {
	return f.photoData, nil
}

func newQREngine(t *testing.T, tr *fakeTransport, def *conv.Definition) *conv.Engine {
	t.Helper()
	e := conv.NewEngine(conv.Options{Transport: tr})
	if err := e.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}
	return e
}

func TestGenerateFlowDeliversScannableCode(t *testing.T) {
	tr := &fakeTransport{}
	e := newQREngine(t, tr, GenerateFlow())
	ctx := context.Background()

	if err := e.Dispatch(ctx, conv.Event{Type: conv.EventCommand, ChatID: 1, Command: "/qrgen"}); err != nil {
		t.Fatalf("entry: %v", err)
	}
	if tr.texts[0] != "Please send me the text you want to convert to a QR code:" {
		t.Fatalf("prompt = %q", tr.texts[0])
	}

	if err := e.Dispatch(ctx, conv.Event{Type: conv.EventText, ChatID: 1, Text: "ping"}); err != nil {
		t.Fatalf("dispatch text: %v", err)
	}

	if len(tr.photos) != 1 {
		t.Fatalf("photos = %d, want exactly one", len(tr.photos))
	}
	if tr.captions[0] != "QR code for: ping" {
		t.Fatalf("caption = %q", tr.captions[0])
	}
	content, err := Decode(tr.photos[0])
	if err != nil {
		t.Fatalf("decode generated code: %v", err)
	}
	if content != "ping" {
		t.Fatalf("decoded = %q, want %q", content, "ping")
	}
	if last := tr.texts[len(tr.texts)-1]; last != "QR code generated successfully!" {
		t.Fatalf("last text = %q", last)
	}
	if e.InProgress(1) {
		t.Fatal("session must end after delivery")
	}
}

func TestReadFlowReportsContent(t *testing.T) {
	png, err := Encode("https://example.test/x")
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	tr := &fakeTransport{photoData: png}
	e := newQREngine(t, tr, ReadFlow())
	ctx := context.Background()

	if err := e.Dispatch(ctx, conv.Event{Type: conv.EventCommand, ChatID: 1, Command: "/qrread"}); err != nil {
		t.Fatalf("entry: %v", err)
	}
	if err := e.Dispatch(ctx, conv.Event{Type: conv.EventPhoto, ChatID: 1, Photo: conv.PhotoRef{FileID: "p1"}}); err != nil {
		t.Fatalf("dispatch photo: %v", err)
	}

	if last := tr.texts[len(tr.texts)-1]; last != "QR code content: https://example.test/x" {
		t.Fatalf("last text = %q", last)
	}
	if e.InProgress(1) {
		t.Fatal("session must end after decoding")
	}
}

func TestReadFlowRejectsUndecodableImage(t *testing.T) {
	tr := &fakeTransport{photoData: []byte("not an image at all")}
	e := newQREngine(t, tr, ReadFlow())
	ctx := context.Background()

	_ = e.Dispatch(ctx, conv.Event{Type: conv.EventCommand, ChatID: 1, Command: "/qrread"})
	err := e.Dispatch(ctx, conv.Event{Type: conv.EventPhoto, ChatID: 1, Photo: conv.PhotoRef{FileID: "p1"}})
	if err == nil {
		t.Fatal("expected decode failure")
	}

	if last := tr.texts[len(tr.texts)-1]; !strings.HasPrefix(last, "Error reading QR code:") {
		t.Fatalf("last text = %q", last)
	}
	if e.InProgress(1) {
		t.Fatal("session must end after failure")
	}
}

package image

import (
	"bytes"
	"context"
	"image/png"
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

func newEnhanceEngine(t *testing.T, tr *fakeTransport) *conv.Engine {
	t.Helper()
	e := conv.NewEngine(conv.Options{Transport: tr})
	if err := e.Register(Flow()); err != nil {
		t.Fatalf("register: %v", err)
	}
	return e
}

func TestEnhanceFlowDeliversUpscaledPhoto(t *testing.T) {
	tr := &fakeTransport{photoData: fixturePNG(t, 40, 30)}
	e := newEnhanceEngine(t, tr)
	ctx := context.Background()

	if err := e.Dispatch(ctx, conv.Event{Type: conv.EventCommand, ChatID: 1, Command: "/enhance"}); err != nil {
		t.Fatalf("entry: %v", err)
	}
	if tr.texts[0] != "Please send me an image to enhance:" {
		t.Fatalf("prompt = %q", tr.texts[0])
	}

	if err := e.Dispatch(ctx, conv.Event{Type: conv.EventPhoto, ChatID: 1, Photo: conv.PhotoRef{FileID: "p1"}}); err != nil {
		t.Fatalf("dispatch photo: %v", err)
	}

	if tr.texts[1] != "Enhancing image... This may take a moment." {
		t.Fatalf("progress text = %q", tr.texts[1])
	}
	if len(tr.photos) != 1 || tr.captions[0] != "Enhanced image" {
		t.Fatalf("photos = %d, captions = %v", len(tr.photos), tr.captions)
	}
	out, err := png.Decode(bytes.NewReader(tr.photos[0]))
	if err != nil {
		t.Fatalf("delivered photo is not a PNG: %v", err)
	}
	if out.Bounds().Dx() != 60 || out.Bounds().Dy() != 45 {
		t.Fatalf("size = %dx%d, want 60x45", out.Bounds().Dx(), out.Bounds().Dy())
	}
	if e.InProgress(1) {
		t.Fatal("session must end after delivery")
	}
}

func TestEnhanceFlowRejectsBrokenImage(t *testing.T) {
	tr := &fakeTransport{photoData: []byte("junk")}
	e := newEnhanceEngine(t, tr)
	ctx := context.Background()

	_ = e.Dispatch(ctx, conv.Event{Type: conv.EventCommand, ChatID: 1, Command: "/enhance"})
	err := e.Dispatch(ctx, conv.Event{Type: conv.EventPhoto, ChatID: 1, Photo: conv.PhotoRef{FileID: "p1"}})
	if err == nil {
		t.Fatal("expected enhance failure")
	}

	if last := tr.texts[len(tr.texts)-1]; !strings.HasPrefix(last, "Error enhancing image:") {
		t.Fatalf("last text = %q", last)
	}
	if e.InProgress(1) {
		t.Fatal("session must end after failure")
	}
}

package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeVision struct {
	prompt string
	image  []byte
	mime   string
	err    error
}

func (f *fakeVision) Describe(_ context.Context, prompt string, image []byte, mime string) (string, error) {
	f.prompt, f.image, f.mime = prompt, image, mime
	if f.err != nil {
		return "", f.err
	}
	return "a friendly cat", nil
}

func TestVisionDescriber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.png")
	_ = os.WriteFile(path, []byte("pngdata"), 0o644)

	gw := &fakeVision{}
	got, err := NewVisionDescriber(gw).Describe(context.Background(), path, "")
	if err != nil || got != "a friendly cat" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if gw.mime != "image/png" || string(gw.image) != "pngdata" {
		t.Fatalf("mime=%q image=%q", gw.mime, gw.image)
	}
	if !strings.Contains(gw.prompt, "Describe this photo") {
		t.Fatalf("default question missing: %q", gw.prompt)
	}

	_, _ = NewVisionDescriber(gw).Describe(context.Background(), path, "What breed?")
	if !strings.HasSuffix(gw.prompt, "User's Question: What breed?") {
		t.Fatalf("prompt=%q", gw.prompt)
	}

	configured := NewVisionDescriber(gw)
	configured.Question = "Is it cute?"
	_, _ = configured.Describe(context.Background(), path, "  ")
	if !strings.HasSuffix(gw.prompt, "User's Question: Is it cute?") {
		t.Fatalf("configured question not used: %q", gw.prompt)
	}

	if _, err := NewVisionDescriber(gw).Describe(context.Background(), filepath.Join(t.TempDir(), "x.png"), ""); err == nil {
		t.Fatal("expected read error")
	}
}

type fakeSpeech struct {
	calls int
	err   error
}

func (f *fakeSpeech) Speak(_ context.Context, text string) (io.ReadCloser, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader("mp3:" + text)), nil
}

func TestSpeechSynthesizer(t *testing.T) {
	dir := t.TempDir()
	gw := &fakeSpeech{}
	s := NewSpeechSynthesizer(gw, dir, nil)

	path, err := s.Synthesize(context.Background(), "مرحبا", "ar")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if filepath.Dir(path) != dir || filepath.Ext(path) != ".mp3" {
		t.Fatalf("path=%s", path)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "mp3:مرحبا" {
		t.Fatalf("audio=%q", data)
	}

	again, err := s.Synthesize(context.Background(), "مرحبا", "ar")
	if err != nil || again != path {
		t.Fatalf("second call path=%s err=%v", again, err)
	}
	if gw.calls != 1 {
		t.Fatalf("gateway calls=%d, want 1 (cached)", gw.calls)
	}

	gw.err = errors.New("speech down")
	if _, err := s.Synthesize(context.Background(), "other", "en"); err == nil {
		t.Fatal("expected error")
	}
}

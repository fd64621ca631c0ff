package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// fakeTesseract writes a shell script that behaves like tesseract.
func fakeTesseract(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a unix shell")
	}
	path := filepath.Join(t.TempDir(), "tesseract")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTesseractExtractor(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"text", `echo "  hello $4  "`, "hello ara+eng", false},
		{"args", `echo "$1|$2|$3|$4"`, "/img.png|stdout|-l|ara+eng", false},
		{"blank", `echo "   "`, NoTextMessage, false},
		{"failure", `echo "bad image" >&2; exit 1`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewTesseractExtractor(fakeTesseract(t, tt.body), "", 5000)
			got, err := e.Extract(context.Background(), "/img.png")
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "bad image") {
					t.Fatalf("expected tesseract error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTesseractExtractor_Missing(t *testing.T) {
	e := NewTesseractExtractor(filepath.Join(t.TempDir(), "no-such-tesseract"), "", 0)
	if _, err := e.Extract(context.Background(), "x.png"); !errors.Is(err, ErrOCRUnavailable) {
		t.Fatalf("expected ErrOCRUnavailable, got %v", err)
	}
}

func TestTesseractExtractor_Timeout(t *testing.T) {
	e := NewTesseractExtractor(fakeTesseract(t, "exec sleep 5"), "", 100)
	if _, err := e.Extract(context.Background(), "x.png"); err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestCappedBuffer(t *testing.T) {
	b := newCappedBuffer(4)
	n, err := b.Write([]byte("abcdef"))
	if err != nil || n != 6 {
		t.Fatalf("Write n=%d err=%v", n, err)
	}
	if b.String() != "abcd" || !b.truncated {
		t.Fatalf("buffer=%q truncated=%v", b.String(), b.truncated)
	}
}

package media

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var stagedName = regexp.MustCompile(`^temp_\d+_[0-9a-f-]{36}_photo\.PNG$`)

func TestStage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	u, err := Stage(dir, "../../photo.PNG", strings.NewReader("img"))
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if filepath.Dir(u.Path) != dir {
		t.Fatalf("upload escaped dir: %s", u.Path)
	}
	if !stagedName.MatchString(filepath.Base(u.Path)) {
		t.Fatalf("name=%s", filepath.Base(u.Path))
	}
	data, _ := os.ReadFile(u.Path)
	if string(data) != "img" {
		t.Fatalf("content=%q", data)
	}

	if err := u.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := u.Remove(); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if _, err := os.Stat(u.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file still present: %v", err)
	}
}

func TestStageRejectsType(t *testing.T) {
	for _, name := range []string{"doc.pdf", "noext", "anim.gif"} {
		if _, err := Stage(t.TempDir(), name, strings.NewReader("x")); !errors.Is(err, ErrUnsupportedImage) {
			t.Errorf("%s: expected ErrUnsupportedImage, got %v", name, err)
		}
	}
}

func TestStageFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "a.jpg")
	_ = os.WriteFile(src, []byte("jpeg"), 0o644)
	u, err := StageFile(t.TempDir(), src)
	if err != nil {
		t.Fatalf("StageFile: %v", err)
	}
	defer u.Remove()
	if u.Path == src {
		t.Fatal("StageFile must copy the source")
	}
	if _, err := StageFile(t.TempDir(), filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestMIMEType(t *testing.T) {
	tests := map[string]string{"a.png": "image/png", "a.JPG": "image/jpeg", "a.jpeg": "image/jpeg", "a": "image/jpeg"}
	for in, want := range tests {
		if got := MIMEType(in); got != want {
			t.Errorf("MIMEType(%q)=%q, want %q", in, got, want)
		}
	}
}

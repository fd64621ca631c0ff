package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// isolate points HOME, COMPANION_HOME and cwd at temp dirs.
func isolate(t *testing.T, baseURL string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("COMPANION_HOME", filepath.Join(home, "data"))
	t.Setenv("COMPANION_API_KEY", "test-key")
	t.Setenv("COMPANION_BASE_URL", baseURL)
	t.Setenv("COMPANION_MODEL", "test-model")
	t.Setenv("COMPANION_LOCALE", "en")
	for _, key := range []string{"OPENROUTER_API_KEY", "OPENAI_API_KEY", "COMPANION_USER_ID", "COMPANION_CONFIG_PATH", "COMPANION_CONTEXT_TURNS", "COMPANION_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	work := t.TempDir()
	oldwd, _ := os.Getwd()
	if err := os.Chdir(work); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldwd) })
	return work
}

func chatServer(t *testing.T, reply string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSayPersistsExchange(t *testing.T) {
	srv, calls := chatServer(t, "Hi there!")
	isolate(t, srv.URL)

	out, err := run(t, "", "say", "--user", "u1", "Hello")
	if err != nil {
		t.Fatalf("say: %v", err)
	}
	if strings.TrimSpace(out) != "Hi there!" {
		t.Fatalf("out=%q", out)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("calls=%d", *calls)
	}

	out, err = run(t, "", "history", "show", "--user", "u1")
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	for _, want := range []string{"[assistant] Hello Ghadeer!", "[user] Hello", "[assistant] Hi there!"} {
		if !strings.Contains(out, want) {
			t.Fatalf("history missing %q: %q", want, out)
		}
	}
}

func TestChatLineModeFromPipe(t *testing.T) {
	srv, calls := chatServer(t, "Hi there!")
	isolate(t, srv.URL)

	out, err := run(t, "Hello\n\n/quit\nignored\n", "chat", "--user", "u2")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.Contains(out, "Hi there!") {
		t.Fatalf("out=%q", out)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("calls=%d", *calls)
	}
}

func TestHistoryExportImportClear(t *testing.T) {
	srv, _ := chatServer(t, "Hi there!")
	work := isolate(t, srv.URL)

	if _, err := run(t, "", "say", "-u", "u1", "Hello"); err != nil {
		t.Fatalf("say: %v", err)
	}
	path := filepath.Join(work, "u1.json")
	if _, err := run(t, "", "history", "export", "-u", "u1", path); err != nil {
		t.Fatalf("export: %v", err)
	}
	out, err := run(t, "", "history", "import", "-u", "copy", path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "imported 3 turns for copy") {
		t.Fatalf("import out=%q", out)
	}

	out, err = run(t, "", "history", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "u1") || !strings.Contains(out, "copy") {
		t.Fatalf("list out=%q", out)
	}

	if _, err := run(t, "", "history", "clear", "-u", "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out, err = run(t, "", "history", "export", "-u", "u1")
	if err != nil {
		t.Fatalf("export stdout: %v", err)
	}
	var rec struct {
		UserID string `json:"user_id"`
		Turns  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"turns"`
	}
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("decode export: %v\n%s", err, out)
	}
	if len(rec.Turns) != 1 || rec.Turns[0].Role != "assistant" {
		t.Fatalf("after clear: %+v", rec)
	}
}

func TestModelsSet(t *testing.T) {
	srv, _ := chatServer(t, "ok")
	work := isolate(t, srv.URL)

	out, err := run(t, "", "models", "set", "vendor/new-model")
	if err != nil {
		t.Fatalf("models set: %v", err)
	}
	if !strings.Contains(out, "vendor/new-model") {
		t.Fatalf("out=%q", out)
	}
	data, err := os.ReadFile(filepath.Join(work, ".companion", "config.json"))
	if err != nil || !strings.Contains(string(data), "vendor/new-model") {
		t.Fatalf("config: %v %s", err, data)
	}
}

func TestImageRejectsUnknownMode(t *testing.T) {
	srv, _ := chatServer(t, "ok")
	isolate(t, srv.URL)
	if _, err := run(t, "", "image", "--mode", "sketch", "x.png"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestSayRequiresMessage(t *testing.T) {
	srv, _ := chatServer(t, "ok")
	isolate(t, srv.URL)
	if _, err := run(t, "", "say"); err == nil {
		t.Fatal("expected error without a message")
	}
}

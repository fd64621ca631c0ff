package repl

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"companion/internal/chat"
	"companion/internal/i18n"
	"companion/internal/langid"
	"companion/internal/persona"
	"companion/internal/provider"
	"companion/internal/session"
	"companion/internal/slash"
	"companion/internal/storage"
)

type stubGateway struct {
	calls int
	fail  error
}

func (g *stubGateway) Send(context.Context, string, []chat.Turn, string) (string, error) {
	g.calls++
	if g.fail != nil {
		return "", g.fail
	}
	return "Hi there!", nil
}
func (g *stubGateway) CurrentModel() string    { return "test-model" }
func (g *stubGateway) SetModel(string) error   { return nil }
func (g *stubGateway) ListModels(context.Context) ([]provider.ModelInfo, error) {
	return nil, nil
}

func newTestLoop(t *testing.T, input string) (*Loop, *bytes.Buffer, *stubGateway) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	gw := &stubGateway{}
	msgs := i18n.New("en")
	mgr := session.New(gw, store, langid.New(), session.Options{
		Persona:  persona.Persona{AIName: "Rafiq"},
		Messages: msgs,
	})
	runner := &slash.Runner{Manager: mgr, Gateway: gw, Messages: msgs, UploadDir: t.TempDir()}
	s := mgr.OpenSession(context.Background(), "u1")

	var out bytes.Buffer
	loop := NewLoop(runner, s, NewBasicLineInput(strings.NewReader(input), &out), &out)
	loop.Color = false
	loop.AIName = "Rafiq"
	return loop, &out, gw
}

func TestRun_ExchangeUntilEOF(t *testing.T) {
	loop, out, gw := newTestLoop(t, "Hello\n")
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "Hello Ghadeer!") {
		t.Errorf("greeting missing: %q", text)
	}
	if !strings.Contains(text, "Hi there!") {
		t.Errorf("reply missing: %q", text)
	}
	if gw.calls != 1 {
		t.Fatalf("gateway calls=%d", gw.calls)
	}
	if loop.Session.Len() != 3 {
		t.Fatalf("session len=%d", loop.Session.Len())
	}
}

func TestRun_SkipsBlankLines(t *testing.T) {
	loop, _, gw := newTestLoop(t, "\n   \n\t\n")
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gw.calls != 0 || loop.Session.Len() != 1 {
		t.Fatalf("calls=%d len=%d", gw.calls, loop.Session.Len())
	}
}

func TestRun_QuitStops(t *testing.T) {
	loop, _, gw := newTestLoop(t, "/quit\nHello\n")
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gw.calls != 0 {
		t.Fatalf("input after /quit was sent")
	}
}

func TestRun_ClearReprintsGreeting(t *testing.T) {
	loop, out, _ := newTestLoop(t, "Hello\n/clear\n")
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	text := out.String()
	if strings.Count(text, "Hello Ghadeer!") != 2 {
		t.Fatalf("greeting should be printed again after clear: %q", text)
	}
	if !strings.Contains(text, "Chat memory cleared") {
		t.Fatalf("clear notice missing: %q", text)
	}
	if loop.Session.Len() != 1 {
		t.Fatalf("session len=%d", loop.Session.Len())
	}
}

func TestRun_CommandErrorKeepsLooping(t *testing.T) {
	loop, out, gw := newTestLoop(t, "/bogus\nHello\n")
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "error:") {
		t.Fatalf("expected error line: %q", out.String())
	}
	if gw.calls != 1 {
		t.Fatalf("gateway calls=%d", gw.calls)
	}
}

func TestRun_ProviderFailureBecomesTurn(t *testing.T) {
	loop, out, gw := newTestLoop(t, "Hello\n")
	gw.fail = &provider.Failure{Kind: provider.FailureNetwork, Err: errors.New("dial tcp: refused")}
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if loop.Session.Len() != 3 {
		t.Fatalf("diagnostic should be recorded, len=%d", loop.Session.Len())
	}
	if strings.Contains(out.String(), "error:") {
		t.Fatalf("provider failures are conversation turns, not loop errors: %q", out.String())
	}
}

func TestPrompt_Format(t *testing.T) {
	loop, _, _ := newTestLoop(t, "")
	loop.tokens = 1200
	loop.window = 3
	p := loop.prompt()
	for _, want := range []string{"context: 3 turns", "1200 tokens", "model: test-model", "> "} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q: %q", want, p)
		}
	}
}

func TestBasicLineInput(t *testing.T) {
	var out bytes.Buffer
	in := NewBasicLineInput(strings.NewReader("one\r\ntwo"), &out)
	first, err := in.ReadLine("> ")
	if err != nil || first != "one" {
		t.Fatalf("first=%q err=%v", first, err)
	}
	second, err := in.ReadLine("> ")
	if err != nil || second != "two" {
		t.Fatalf("second=%q err=%v", second, err)
	}
	if _, err := in.ReadLine("> "); err == nil {
		t.Fatal("expected EOF")
	}
	if out.String() != "> > > " {
		t.Fatalf("prompts=%q", out.String())
	}
}

func TestSameStart(t *testing.T) {
	a := []chat.Turn{chat.AssistantTurn("hi"), chat.UserTurn("x")}
	if !sameStart(a, a[:1]) {
		t.Fatal("prefix should match")
	}
	if sameStart([]chat.Turn{chat.AssistantTurn("other")}, a) {
		t.Fatal("different first turn should not match")
	}
}

package session

import (
	"testing"

	"companion/internal/chat"
)

func TestSessionAssistantTurn(t *testing.T) {
	s := newSession("u1", []chat.Turn{
		chat.AssistantTurn("a1"), chat.UserTurn("u"), chat.AssistantTurn("a2"),
	})
	tests := []struct {
		n    int
		want string
		ok   bool
	}{
		{0, "a2", true},
		{1, "a1", true},
		{2, "a2", true},
		{3, "", false},
	}
	for _, tt := range tests {
		got, ok := s.AssistantTurn(tt.n)
		if ok != tt.ok || got.Content != tt.want {
			t.Errorf("AssistantTurn(%d)=%+v,%v", tt.n, got, ok)
		}
	}
}

func TestSessionTurnsIsCopy(t *testing.T) {
	s := newSession("u1", []chat.Turn{chat.UserTurn("x")})
	turns := s.Turns()
	turns[0].Content = "changed"
	if s.Turns()[0].Content != "x" {
		t.Fatal("Turns must return a copy")
	}
	if text, ok := s.LastUserText(); !ok || text != "x" {
		t.Fatalf("LastUserText=%q,%v", text, ok)
	}
}

package chat

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewTurn(t *testing.T) {
	tests := []struct {
		name    string
		role    Role
		wantErr bool
	}{
		{name: "user", role: RoleUser},
		{name: "assistant", role: RoleAssistant},
		{name: "upper case", role: Role("Assistant")},
		{name: "system rejected", role: RoleSystem, wantErr: true},
		{name: "tool rejected", role: Role("tool"), wantErr: true},
		{name: "empty rejected", role: Role(""), wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			turn, err := NewTurn(tc.role, "hi")
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidRole) {
					t.Fatalf("expected ErrInvalidRole, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if turn.Content != "hi" {
				t.Fatalf("Content=%q, want hi", turn.Content)
			}
		})
	}
}

func TestTurnUnmarshalValidatesRole(t *testing.T) {
	var turns []Turn
	if err := json.Unmarshal([]byte(`[{"role":"user","content":"مرحبا"},{"role":"assistant","content":"hi"}]`), &turns); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(turns) != 2 || turns[0].Role != RoleUser || turns[0].Content != "مرحبا" {
		t.Fatalf("unexpected turns: %+v", turns)
	}

	err := json.Unmarshal([]byte(`[{"role":"system","content":"x"}]`), &turns)
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestCloneTurns(t *testing.T) {
	orig := []Turn{UserTurn("a"), AssistantTurn("b")}
	cp := CloneTurns(orig)
	cp[0].Content = "changed"
	if orig[0].Content != "a" {
		t.Fatalf("clone shares backing array")
	}
	if CloneTurns(nil) != nil {
		t.Fatalf("clone of nil should be nil")
	}
}

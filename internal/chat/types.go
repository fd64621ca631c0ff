package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRole is returned when a turn carries a role other than user or assistant.
var ErrInvalidRole = errors.New("invalid turn role")

// Role is the speaker tag of a turn.
type Role string

const (
	// RoleSystem only exists on the wire; it is never stored in a session.
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole 解析会话中允许出现的角色
// ParseRole parses a role allowed inside a session (user or assistant)
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAssistant:
		return RoleAssistant, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Turn is one message of a conversation. Turns are values and are never
// edited after they are appended to a session.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewTurn 创建并校验一个 turn
// NewTurn creates a validated turn
func NewTurn(role Role, content string) (Turn, error) {
	parsed, err := ParseRole(string(role))
	if err != nil {
		return Turn{}, err
	}
	return Turn{Role: parsed, Content: content}, nil
}

// UserTurn builds a user turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn builds an assistant turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// UnmarshalJSON 反序列化时校验角色，拒绝 system/tool 等不属于会话的角色
// UnmarshalJSON validates the role while decoding
func (t *Turn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	turn, err := NewTurn(Role(raw.Role), raw.Content)
	if err != nil {
		return err
	}
	*t = turn
	return nil
}

// CloneTurns returns an independent copy of turns.
func CloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	return append([]Turn(nil), turns...)
}

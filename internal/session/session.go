// Package session 会话管理器：恢复、追加、生成回复、持久化和清空对话
// Package session is the Session Manager: it restores, extends, answers, persists and clears conversations
package session

import (
	"companion/internal/chat"
)

// Session 单个用户的对话；只能追加或通过 Clear 整体重置
// Session is the conversation of one user; it only grows by append or is reset wholesale by Clear
type Session struct {
	userID string
	turns  []chat.Turn
}

func newSession(userID string, turns []chat.Turn) *Session {
	return &Session{userID: userID, turns: chat.CloneTurns(turns)}
}

func (s *Session) UserID() string { return s.userID }

// Turns returns a copy of the conversation.
func (s *Session) Turns() []chat.Turn {
	return append([]chat.Turn{}, s.turns...)
}

func (s *Session) Len() int { return len(s.turns) }

// LastUserText returns the content of the most recent user turn.
func (s *Session) LastUserText() (string, bool) {
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Role == chat.RoleUser {
			return s.turns[i].Content, true
		}
	}
	return "", false
}

// AssistantTurn 返回第 n 条助手消息（从 1 开始）；n<=0 返回最后一条
// AssistantTurn returns the n-th assistant turn (1-based); n<=0 returns the latest
func (s *Session) AssistantTurn(n int) (chat.Turn, bool) {
	var found []chat.Turn
	for _, t := range s.turns {
		if t.Role == chat.RoleAssistant {
			found = append(found, t)
		}
	}
	if len(found) == 0 {
		return chat.Turn{}, false
	}
	if n <= 0 {
		return found[len(found)-1], true
	}
	if n > len(found) {
		return chat.Turn{}, false
	}
	return found[n-1], true
}

func (s *Session) append(t chat.Turn) {
	s.turns = append(s.turns, t)
}

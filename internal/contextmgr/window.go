// Package contextmgr 选择发送给模型的对话窗口并估算其大小
// Package contextmgr selects the slice of a conversation sent to the model and estimates its size
package contextmgr

import "companion/internal/chat"

// Window 返回最后 n 条消息的副本；n<=0 返回空
// Window returns a copy of the last n turns; n<=0 returns none
func Window(turns []chat.Turn, n int) []chat.Turn {
	if n <= 0 || len(turns) == 0 {
		return []chat.Turn{}
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return chat.CloneTurns(turns)
}

// Info describes what the model would receive for a session.
type Info struct {
	WindowTurns int
	TotalTurns  int
	Tokens      int
	Precise     bool
}

// Describe 计算窗口信息；tok 为 nil 时不估算 token
// Describe computes window info; tokens are not estimated when tok is nil
func Describe(tok *Tokenizer, directive string, turns []chat.Turn, n int) Info {
	window := Window(turns, n)
	info := Info{WindowTurns: len(window), TotalTurns: len(turns)}
	if tok != nil {
		info.Tokens = tok.Count(directive, window)
		info.Precise = tok.IsPrecise()
	}
	return info
}

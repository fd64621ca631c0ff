package contextmgr

import (
	"strings"
	"sync"
	"unicode"

	"companion/internal/chat"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer 估算发送给模型的 token 数，tiktoken 不可用时回退到启发式
// Tokenizer estimates tokens sent to the model; falls back to a heuristic when tiktoken is unavailable
type Tokenizer struct {
	encoder      *tiktoken.Tiktoken
	encodingName string
	fallback     bool
	mu           sync.RWMutex
}

// NewTokenizer 创建 tokenizer，如果 tiktoken 初始化失败则回退到启发式
// NewTokenizer creates a tokenizer, falls back to heuristic if tiktoken init fails
func NewTokenizer(encodingName string) *Tokenizer {
	t := &Tokenizer{encodingName: encodingName}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		// 离线环境可能没有 BPE 缓存 / Offline environments may lack the BPE cache
		t.fallback = true
		return t
	}
	t.encoder = enc
	return t
}

// NewTokenizerForModel picks the encoding from a provider model id such as "openai/gpt-4o".
func NewTokenizerForModel(model string) *Tokenizer {
	return NewTokenizer(modelToEncoding(model))
}

// Count returns the estimated tokens of a directive plus turns.
func (t *Tokenizer) Count(directive string, turns []chat.Turn) int {
	total := 0
	if directive != "" {
		total += t.countMessage(string(chat.RoleSystem), directive)
	}
	for _, turn := range turns {
		total += t.countMessage(string(turn.Role), turn.Content)
	}
	return total
}

// CountText 计算单个文本的 token 数
// CountText counts tokens for a single text string
func (t *Tokenizer) CountText(text string) int {
	if text == "" {
		return 0
	}
	if t.fallback {
		return heuristicTokenCount(text)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.encoder.Encode(text, nil, nil))
}

func (t *Tokenizer) IsPrecise() bool {
	return !t.fallback
}

func (t *Tokenizer) EncodingName() string {
	return t.encodingName
}

func (t *Tokenizer) countMessage(role, content string) int {
	// ~4 tokens of per-message overhead on chat-completion APIs
	return 4 + t.CountText(role) + t.CountText(content)
}

// heuristicTokenCount: Latin text runs ~4 chars/token, Arabic and other
// non-Latin scripts ~1 token per 1-2 chars.
func heuristicTokenCount(text string) int {
	wide, narrow := 0, 0
	for _, r := range text {
		if isWideScript(r) {
			wide++
		} else {
			narrow++
		}
	}
	estimate := int(float64(wide)*0.75 + float64(narrow)*0.25)
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

func isWideScript(r rune) bool {
	return unicode.In(r, unicode.Arabic, unicode.Devanagari, unicode.Han, unicode.Hangul, unicode.Hiragana, unicode.Katakana)
}

// modelToEncoding 根据模型名推断编码；忽略 "vendor/" 前缀
// modelToEncoding maps a model id to an encoding; a "vendor/" prefix is ignored
func modelToEncoding(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	if idx := strings.LastIndexByte(m, '/'); idx >= 0 {
		m = m[idx+1:]
	}
	switch {
	case m == "":
		return "cl100k_base"
	case strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return "o200k_base"
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "gpt-4.1"), strings.HasPrefix(m, "chatgpt-4o"):
		return "o200k_base"
	default:
		// mistral, llama and friends have their own vocabularies; cl100k is close enough for an estimate
		return "cl100k_base"
	}
}

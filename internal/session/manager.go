package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"companion/internal/chat"
	"companion/internal/config"
	"companion/internal/contextmgr"
	"companion/internal/i18n"
	"companion/internal/langid"
	"companion/internal/media"
	"companion/internal/observability"
	"companion/internal/persona"
	"companion/internal/provider"
	"companion/internal/storage"
)

// ErrSpeechUnavailable is returned by Speak when no synthesizer is configured.
var ErrSpeechUnavailable = errors.New("speech synthesis is not configured")

// Detector identifies the language of a text.
type Detector interface {
	Detect(text string) langid.Detection
}

type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

type ImageDescriber interface {
	Describe(ctx context.Context, path, question string) (string, error)
}

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (string, error)
}

// Mode selects how an image is analyzed.
type Mode string

const (
	ModeOCR    Mode = "ocr"
	ModeVision Mode = "vision"
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "vision", "description":
		return ModeVision, nil
	case "ocr", "text":
		return ModeOCR, nil
	default:
		return "", fmt.Errorf("unknown image mode %q (want ocr or vision)", s)
	}
}

type Options struct {
	Persona      persona.Persona
	Messages     *i18n.I18n
	ContextTurns int
	DefaultModel string
	Logger       *slog.Logger
	Tokenizer    *contextmgr.Tokenizer

	// 可选的媒体适配器 / Optional media adapters
	OCR    TextExtractor
	Vision ImageDescriber
	Speech SpeechSynthesizer
}

// Manager 会话管理器，本身不持有可变状态，可被多个前端共享
// Manager holds no mutable state of its own and may be shared by front ends
type Manager struct {
	gateway  provider.Gateway
	store    storage.Store
	detector Detector
	opts     Options
	log      *slog.Logger
}

func New(gw provider.Gateway, store storage.Store, detector Detector, opts Options) *Manager {
	if opts.ContextTurns <= 0 {
		opts.ContextTurns = config.DefaultContextTurns
	}
	if opts.Messages == nil {
		opts.Messages = i18n.New(config.DefaultLocale)
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.Discard()
	}
	return &Manager{
		gateway:  gw,
		store:    store,
		detector: detector,
		opts:     opts,
		log:      logger.With("component", "session"),
	}
}

// Greeting returns the first assistant turn of a fresh session.
func (m *Manager) Greeting() chat.Turn {
	return chat.AssistantTurn(m.opts.Messages.T("greeting", m.opts.Persona.UserName()))
}

// OpenSession 恢复用户会话；不存在、为空或损坏时返回只含问候语的新会话
// OpenSession restores a user's session; missing, empty or corrupt records give a fresh greeting session
func (m *Manager) OpenSession(ctx context.Context, userID string) *Session {
	turns, err := m.store.Get(ctx, userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		m.log.Debug("no stored history", "user", userID)
	case err != nil:
		m.log.Warn("stored history unreadable, starting fresh", "user", userID, "err", err)
	case len(turns) > 0:
		return newSession(userID, turns)
	}
	return newSession(userID, []chat.Turn{m.Greeting()})
}

func (m *Manager) AppendUserTurn(s *Session, text string) *Session {
	s.append(chat.UserTurn(text))
	return s
}

func (m *Manager) AppendAssistantTurn(s *Session, turn chat.Turn) *Session {
	s.append(chat.AssistantTurn(turn.Content))
	return s
}

// AppendMediaTurn appends an adapter result verbatim as an assistant turn.
func (m *Manager) AppendMediaTurn(s *Session, content string) *Session {
	s.append(chat.AssistantTurn(content))
	return s
}

// GenerateReply 永不返回错误：网关失败会变成一条诊断消息
// GenerateReply never fails: gateway failures become a diagnostic assistant turn
func (m *Manager) GenerateReply(ctx context.Context, s *Session, model string) chat.Turn {
	det := m.detectLatest(s)
	directive := persona.BuildDirective(m.opts.Persona, det)
	window := contextmgr.Window(s.turns, m.opts.ContextTurns)
	model = m.model(model)

	attrs := []any{
		"user", s.userID, "model", model, "lang", det.Code,
		"window_turns", len(window), "total_turns", len(s.turns),
	}
	if m.opts.Tokenizer != nil {
		attrs = append(attrs, "est_tokens", m.opts.Tokenizer.Count(directive, window))
	}

	log := observability.FromContext(ctx, m.log)
	start := time.Now()
	text, err := m.gateway.Send(ctx, directive, window, model)
	attrs = append(attrs, "duration", time.Since(start))
	if err != nil {
		log.Warn("reply failed", append(attrs, "kind", provider.KindOf(err), "err", err)...)
		return chat.AssistantTurn(m.diagnostic(err))
	}
	log.Info("reply", attrs...)
	return chat.AssistantTurn(text)
}

// Persist 整体覆盖保存；失败会记录日志并返回，对话继续
// Persist overwrites the stored record; failures are logged and returned, the conversation goes on
func (m *Manager) Persist(ctx context.Context, s *Session) error {
	if err := m.store.Put(ctx, s.userID, s.turns); err != nil {
		m.log.Error("persist failed", "user", s.userID, "turns", len(s.turns), "err", err)
		return fmt.Errorf("persist history for %s: %w", s.userID, err)
	}
	m.log.Debug("persisted", "user", s.userID, "turns", len(s.turns))
	return nil
}

// Clear resets the session to a fresh greeting and persists it immediately.
func (m *Manager) Clear(ctx context.Context, s *Session) error {
	s.turns = []chat.Turn{m.Greeting()}
	m.log.Info("session cleared", "user", s.userID)
	return m.Persist(ctx, s)
}

// Exchange 一次完整的用户输入处理：追加、生成、追加、保存；只返回持久化错误
// Exchange runs one full user step (append, generate, append, persist); only persistence errors are returned
func (m *Manager) Exchange(ctx context.Context, s *Session, text, model string) (chat.Turn, error) {
	m.AppendUserTurn(s, text)
	reply := m.GenerateReply(ctx, s, model)
	m.AppendAssistantTurn(s, reply)
	return reply, m.Persist(ctx, s)
}

// AnalyzeImage 分析上传图片并把结果作为助手消息追加；上传文件总会被删除
// AnalyzeImage analyzes an upload and appends the result as an assistant turn; the upload is always removed
func (m *Manager) AnalyzeImage(ctx context.Context, s *Session, upload *media.Upload, mode Mode, question string) (chat.Turn, error) {
	defer func() {
		if err := upload.Remove(); err != nil {
			m.log.Warn("remove upload", "path", upload.Path, "err", err)
		}
	}()

	var content string
	switch mode {
	case ModeOCR:
		content = m.runOCR(ctx, upload.Path)
	case ModeVision:
		content = m.runVision(ctx, upload.Path, question)
	default:
		return chat.Turn{}, fmt.Errorf("unknown image mode %q", mode)
	}

	turn := chat.AssistantTurn(content)
	m.AppendMediaTurn(s, content)
	return turn, m.Persist(ctx, s)
}

func (m *Manager) runOCR(ctx context.Context, path string) string {
	t := m.opts.Messages
	if m.opts.OCR == nil {
		return t.T("diag.ocr_unavailable")
	}
	text, err := m.opts.OCR.Extract(ctx, path)
	if err != nil {
		m.log.Warn("ocr failed", "err", err)
		if errors.Is(err, media.ErrOCRUnavailable) {
			return t.T("diag.ocr_unavailable")
		}
		return t.T("diag.ocr", err.Error())
	}
	fence := codeFence(text)
	return fmt.Sprintf("%s\n\n%s\n%s\n%s", t.T("ocr.heading"), fence, text, fence)
}

// codeFence returns a backtick fence longer than any backtick run in text.
func codeFence(text string) string {
	longest, run := 0, 0
	for _, r := range text {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	if longest < 3 {
		return "```"
	}
	return strings.Repeat("`", longest+1)
}

func (m *Manager) runVision(ctx context.Context, path, question string) string {
	t := m.opts.Messages
	if m.opts.Vision == nil {
		return t.T("diag.vision_unavailable")
	}
	text, err := m.opts.Vision.Describe(ctx, path, question)
	if err == nil {
		return text
	}
	m.log.Warn("vision failed", "err", err)
	var f *provider.Failure
	switch {
	case !errors.As(err, &f):
		return t.T("diag.vision_image")
	case f.Kind == provider.FailureAuth:
		return t.T("diag.vision_unavailable")
	default:
		return t.T("diag.vision", f.Detail)
	}
}

// Speak 合成一条消息的语音并返回 mp3 路径；失败返回给调用方显示，不进入会话
// Speak synthesizes a turn and returns the mp3 path; failures go back to the caller, never into the session
func (m *Manager) Speak(ctx context.Context, turn chat.Turn) (string, error) {
	if m.opts.Speech == nil {
		return "", ErrSpeechUnavailable
	}
	det := m.detect(turn.Content)
	path, err := m.opts.Speech.Synthesize(ctx, turn.Content, det.Code)
	if err != nil {
		m.log.Warn("speech failed", "lang", det.Code, "err", err)
		return "", err
	}
	return path, nil
}

// ContextInfo describes the window the next reply would send.
func (m *Manager) ContextInfo(s *Session) contextmgr.Info {
	directive := persona.BuildDirective(m.opts.Persona, m.detectLatest(s))
	return contextmgr.Describe(m.opts.Tokenizer, directive, s.turns, m.opts.ContextTurns)
}

// CurrentModel returns the model the next reply will use.
func (m *Manager) CurrentModel() string {
	return m.model("")
}

func (m *Manager) model(requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	if current := m.gateway.CurrentModel(); current != "" {
		return current
	}
	return m.opts.DefaultModel
}

func (m *Manager) detectLatest(s *Session) langid.Detection {
	text, ok := s.LastUserText()
	if !ok {
		return langid.Default()
	}
	return m.detect(text)
}

func (m *Manager) detect(text string) langid.Detection {
	if m.detector == nil {
		return langid.Default()
	}
	return m.detector.Detect(text)
}

func (m *Manager) diagnostic(err error) string {
	t := m.opts.Messages
	var f *provider.Failure
	if !errors.As(err, &f) {
		return t.T("diag.provider", err.Error())
	}
	switch f.Kind {
	case provider.FailureAuth:
		return t.T("diag.auth")
	case provider.FailureNetwork:
		return t.T("diag.network", f.Detail)
	default:
		return t.T("diag.provider", f.Detail)
	}
}

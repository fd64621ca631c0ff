package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"companion/internal/chat"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

const temperature = 0.7

// OpenAIConfig SDK 网关配置
// OpenAIConfig is the SDK gateway configuration
type OpenAIConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	TimeoutMS       int
	MaxRetries      int
	VisionModel     string
	VisionMaxTokens int

	// 语音使用独立的端点 / Speech uses its own endpoint
	SpeechBaseURL string
	SpeechAPIKey  string
	SpeechModel   string
	SpeechVoice   string

	Logger *slog.Logger
}

// OpenAIGateway 使用 go-openai SDK 实现 Gateway、VisionGateway 和 SpeechGateway
// OpenAIGateway implements Gateway, VisionGateway and SpeechGateway with the go-openai SDK
type OpenAIGateway struct {
	client       *openai.Client
	speechClient *openai.Client
	model        string
	cfg          OpenAIConfig
	log          *slog.Logger
	mu           sync.RWMutex
}

func NewOpenAIGateway(cfg OpenAIConfig) *OpenAIGateway {
	httpClient := &http.Client{}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.VisionMaxTokens <= 0 {
		cfg.VisionMaxTokens = 500
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	config.HTTPClient = httpClient

	speechConfig := openai.DefaultConfig(cfg.SpeechAPIKey)
	if cfg.SpeechBaseURL != "" {
		speechConfig.BaseURL = strings.TrimRight(cfg.SpeechBaseURL, "/")
	}
	speechConfig.HTTPClient = httpClient

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &OpenAIGateway{
		client:       openai.NewClientWithConfig(config),
		speechClient: openai.NewClientWithConfig(speechConfig),
		model:        cfg.Model,
		cfg:          cfg,
		log:          logger.With("component", "gateway"),
	}
}

func (g *OpenAIGateway) CurrentModel() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.model
}

func (g *OpenAIGateway) SetModel(model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model is empty")
	}
	g.mu.Lock()
	g.model = model
	g.mu.Unlock()
	return nil
}

func (g *OpenAIGateway) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if err := g.requireKey(g.cfg.APIKey); err != nil {
		return nil, err
	}
	resp, err := g.client.ListModels(ctx)
	if err != nil {
		return nil, classify(err)
	}
	models := make([]ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, ModelInfo{ID: m.ID, OwnedBy: m.OwnedBy})
	}
	return models, nil
}

// Send 非流式聊天请求：directive 作为 system 消息在前
// Send is a non-streaming chat request with the directive as the leading system message
func (g *OpenAIGateway) Send(ctx context.Context, directive string, turns []chat.Turn, model string) (string, error) {
	if err := g.requireKey(g.cfg.APIKey); err != nil {
		return "", err
	}
	if model = strings.TrimSpace(model); model == "" {
		model = g.CurrentModel()
	}
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    convertTurns(directive, turns),
		Temperature: temperature,
	}
	return g.complete(ctx, req)
}

// Describe 视觉请求：一条用户消息，包含文本和 data URL 图片
// Describe sends one user message holding the prompt and the image as a data URL
func (g *OpenAIGateway) Describe(ctx context.Context, prompt string, image []byte, mime string) (string, error) {
	if err := g.requireKey(g.cfg.APIKey); err != nil {
		return "", err
	}
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
	req := openai.ChatCompletionRequest{
		Model: g.cfg.VisionModel,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
			},
		}},
		MaxTokens: g.cfg.VisionMaxTokens,
	}
	return g.complete(ctx, req)
}

// Speak returns mp3 audio; the caller closes it.
func (g *OpenAIGateway) Speak(ctx context.Context, text string) (io.ReadCloser, error) {
	if err := g.requireKey(g.cfg.SpeechAPIKey); err != nil {
		return nil, err
	}
	resp, err := g.speechClient.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(g.cfg.SpeechModel),
		Input:          text,
		Voice:          openai.SpeechVoice(g.cfg.SpeechVoice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, classify(err)
	}
	return resp.ReadCloser, nil
}

func (g *OpenAIGateway) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	requestID := uuid.NewString()
	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(150*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return "", &Failure{Kind: FailureNetwork, Detail: ctx.Err().Error(), Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		start := time.Now()
		resp, err := g.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", &Failure{Kind: FailureProvider, Detail: "response has no choices"}
			}
			g.log.Debug("completion",
				"request_id", requestID, "model", req.Model, "attempt", attempt,
				"duration", time.Since(start), "prompt_tokens", resp.Usage.PromptTokens,
				"completion_tokens", resp.Usage.CompletionTokens)
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = classify(err)
		g.log.Warn("completion failed",
			"request_id", requestID, "model", req.Model, "attempt", attempt, "err", lastErr)
		if !retryable(err) || ctx.Err() != nil {
			return "", lastErr
		}
	}
	return "", lastErr
}

func (g *OpenAIGateway) requireKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return &Failure{Kind: FailureAuth, Detail: ErrNoAPIKey.Error(), Err: ErrNoAPIKey}
	}
	return nil
}

func convertTurns(directive string, turns []chat.Turn) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if directive != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: directive})
	}
	for _, t := range turns {
		out = append(out, openai.ChatCompletionMessage{Role: string(t.Role), Content: t.Content})
	}
	return out
}

// statusOf returns the HTTP status carried by an SDK error, or 0 for transport errors.
func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func classify(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	status := statusOf(err)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Failure{Kind: FailureAuth, Detail: errorDetail(err), Err: err}
	case status != 0:
		return &Failure{Kind: FailureProvider, Detail: errorDetail(err), Err: err}
	default:
		return &Failure{Kind: FailureNetwork, Detail: err.Error(), Err: err}
	}
}

func errorDetail(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return fmt.Sprintf("status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	return err.Error()
}

// 网络错误、429 和 5xx 可重试；认证错误和调用方取消不重试
// Network errors, 429 and 5xx are retried; auth errors and caller cancellation are not
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	status := statusOf(err)
	if status == 0 {
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	"companion/internal/chat"
)

// FailureKind 网关失败分类
// FailureKind classifies gateway failures
type FailureKind string

const (
	FailureAuth     FailureKind = "auth"
	FailureNetwork  FailureKind = "network"
	FailureProvider FailureKind = "provider"
)

// ErrNoAPIKey is wrapped by the auth Failure returned in degraded mode.
var ErrNoAPIKey = errors.New("api key is not configured")

// Failure 网关返回的唯一错误类型，使用 errors.As 检查
// Failure is the only error type returned by the gateway; check it with errors.As
type Failure struct {
	Kind   FailureKind
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Kind) + " failure"
	}
	return fmt.Sprintf("%s failure: %s", f.Kind, f.Detail)
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf returns the failure kind of err, or FailureProvider when err is not a *Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureProvider
}

// ModelInfo 模型基本信息
// ModelInfo describes a model
type ModelInfo struct {
	ID      string
	OwnedBy string
}

// Gateway 模型网关：会话管理器只依赖这个接口
// Gateway is the model gateway; the session manager depends only on this interface
type Gateway interface {
	// Send 发送指令和对话窗口，返回生成文本
	// Send sends the directive and the context window, returning the generated text
	Send(ctx context.Context, directive string, turns []chat.Turn, model string) (string, error)

	// CurrentModel 返回当前活跃模型
	// CurrentModel returns the current active model
	CurrentModel() string

	// SetModel 切换活跃模型
	// SetModel switches the active model
	SetModel(model string) error

	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// VisionGateway describes images.
type VisionGateway interface {
	Describe(ctx context.Context, prompt string, image []byte, mime string) (string, error)
}

// SpeechGateway turns text into mp3 audio.
type SpeechGateway interface {
	Speak(ctx context.Context, text string) (io.ReadCloser, error)
}

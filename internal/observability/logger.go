// Package observability 构建应用日志：终端属于界面，日志写入文件
// Package observability builds the application logger; the terminal belongs to the UI, so logs go to a file
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

type Options struct {
	Level  string // debug | info | warn | error
	Format string // json | text
	File   string // empty writes to Writer
	Writer io.Writer
}

// New returns a logger and a close function for its file.
func New(opts Options) (*slog.Logger, func() error, error) {
	w := opts.Writer
	closer := func() error { return nil }
	if strings.TrimSpace(opts.File) != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f.Close
	}
	if w == nil {
		w = io.Discard
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var h slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		h = slog.NewTextHandler(w, handlerOpts)
	} else {
		h = slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.New(h), closer, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID stores a request_id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// FromContext adds request_id to logger if present.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	reqID, _ := ctx.Value(ctxKeyRequestID).(string)
	if reqID == "" {
		return logger
	}
	return logger.With("request_id", reqID)
}

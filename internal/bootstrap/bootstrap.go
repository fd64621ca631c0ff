package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"companion/internal/config"
	"companion/internal/contextmgr"
	"companion/internal/i18n"
	"companion/internal/langid"
	"companion/internal/observability"
	"companion/internal/persona"
	"companion/internal/provider"
	"companion/internal/session"
	"companion/internal/slash"
	"companion/internal/storage"
)

// BuildResult 与 UI 无关的构建结果，供 TUI、行模式和子命令共用
// BuildResult is UI-agnostic; the TUI, line mode and subcommands share it
type BuildResult struct {
	Config   config.Config
	Logger   *slog.Logger
	Store    storage.Store
	Gateway  *provider.OpenAIGateway
	Manager  *session.Manager
	Runner   *slash.Runner
	Messages *i18n.I18n
	Persona  persona.Persona

	closeLog func() error
}

// Options 构建时的可选项
// Options are optional build-time inputs
type Options struct {
	// Warn receives startup warnings; nil discards them
	Warn io.Writer
	// ProjectDir is where /model choices are saved; empty disables saving
	ProjectDir string
}

// Build 按顺序初始化日志、存储、网关和会话管理器；调用方负责 defer result.Close()
// Build initializes logging, storage, gateway and session manager in order; caller must defer result.Close()
func Build(ctx context.Context, cfg config.Config, opts Options) (*BuildResult, error) {
	warn := opts.Warn
	if warn == nil {
		warn = io.Discard
	}

	logger, closeLog, err := observability.New(observability.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	i18n.Init(cfg.Session.Locale)
	messages := i18n.New(cfg.Session.Locale)

	// 存储不可用时降级为只读空存储，对话照常进行，每次保存报错
	store, err := openStore(ctx, cfg, logger, warn)
	if err != nil {
		logger.Error("storage unavailable, histories will not be saved", "backend", cfg.Storage.Backend, "err", err)
		fmt.Fprintln(warn, messages.T("startup.store_unavailable", err))
		store = storage.NewUnavailableStore(err)
	}

	for _, w := range cfg.Warnings() {
		if errors.Is(w, config.ErrMissingAPIKey) {
			fmt.Fprintln(warn, messages.T("startup.missing_key"))
			continue
		}
		fmt.Fprintln(warn, w)
	}

	p := buildPersona(cfg, logger, warn)
	gateway := provider.NewOpenAIGateway(gatewayConfig(cfg, logger))
	ocr, vision, speech := buildMedia(cfg, gateway)

	manager := session.New(gateway, store, langid.New(), session.Options{
		Persona:      p,
		Messages:     messages,
		ContextTurns: cfg.Session.ContextTurns,
		DefaultModel: cfg.Provider.Model,
		Logger:       logger,
		Tokenizer:    contextmgr.NewTokenizerForModel(cfg.Provider.Model),
		OCR:          ocr,
		Vision:       vision,
		Speech:       speech,
	})

	runner := &slash.Runner{
		Manager:   manager,
		Gateway:   gateway,
		Messages:  messages,
		UploadDir: filepath.Join(cfg.Storage.BaseDir, "uploads"),
		Models:    cfg.Provider.Models,
	}
	if opts.ProjectDir != "" {
		dir := opts.ProjectDir
		runner.SaveModel = func(model string) error {
			return config.WriteProviderModel(dir, model)
		}
	}

	logger.Info("companion ready",
		"backend", cfg.Storage.Backend,
		"model", cfg.Provider.Model,
		"user", cfg.Session.UserID,
		"locale", messages.Locale(),
	)

	return &BuildResult{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Gateway:  gateway,
		Manager:  manager,
		Runner:   runner,
		Messages: messages,
		Persona:  p,
		closeLog: closeLog,
	}, nil
}

// Close 关闭存储和日志文件
// Close releases the store and the log file
func (r *BuildResult) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Store != nil {
		errs = append(errs, r.Store.Close())
	}
	if r.closeLog != nil {
		errs = append(errs, r.closeLog())
	}
	return errors.Join(errs...)
}

// OpenSession 打开配置中的用户会话
// OpenSession opens the session of the configured user
func (r *BuildResult) OpenSession(ctx context.Context) *session.Session {
	return r.Manager.OpenSession(ctx, r.Config.Session.UserID)
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger, warn io.Writer) (storage.Store, error) {
	var store storage.Store
	switch cfg.Storage.Backend {
	case "json":
		files, err := storage.NewFileStore(cfg.Storage.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		store = files
	default:
		sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath())
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		migrated, migErr := storage.MigrateFromJSON(ctx, cfg.Storage.BaseDir, sqliteStore, warn)
		if migErr != nil {
			logger.Warn("json migration failed", "err", migErr)
		} else if migrated > 0 {
			logger.Info("migrated json histories", "count", migrated)
		}
		store = sqliteStore
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return store, nil
}

func buildPersona(cfg config.Config, logger *slog.Logger, warn io.Writer) persona.Persona {
	p := persona.Persona{
		AIName:        cfg.Persona.AIName,
		CreatorName:   cfg.Persona.CreatorName,
		CreatorNature: cfg.Persona.CreatorNature,
	}
	profile, err := persona.LoadProfile(cfg.Persona.ProfilePath)
	switch {
	case err == nil:
		p.Profile = profile
	case errors.Is(err, os.ErrNotExist):
		if cfg.Persona.ProfilePath != "" {
			logger.Warn("profile not found, using generic persona", "path", cfg.Persona.ProfilePath)
		}
	default:
		logger.Warn("profile unreadable, using generic persona", "err", err)
		fmt.Fprintf(warn, "warning: %v\n", err)
	}
	return p
}

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrMissingAPIKey is reported (never returned from Load) when no provider key is configured.
var ErrMissingAPIKey = errors.New("provider api key is not configured")

type ProviderConfig struct {
	BaseURL    string   `json:"base_url"`
	Model      string   `json:"model"`
	Models     []string `json:"models"`
	APIKey     string   `json:"api_key"`
	TimeoutMS  int      `json:"timeout_ms"`
	MaxRetries int      `json:"max_retries"`
}

type VisionConfig struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Question  string `json:"question"`
}

type SpeechConfig struct {
	BaseURL   string `json:"base_url"`
	APIKey    string `json:"api_key"`
	Model     string `json:"model"`
	Voice     string `json:"voice"`
	OutputDir string `json:"output_dir"`
	// Player 播放 mp3 的命令，例如 ["mpv", "--no-video"]；为空则只生成文件
	// Player is the command used to play the mp3, e.g. ["mpv", "--no-video"]; empty only writes the file
	Player []string `json:"player"`
}

type OCRConfig struct {
	Binary    string `json:"binary"`
	Languages string `json:"languages"`
	TimeoutMS int    `json:"timeout_ms"`
}

type SessionConfig struct {
	UserID       string `json:"user_id"`
	ContextTurns int    `json:"context_turns"`
	Locale       string `json:"locale"`
}

type PersonaConfig struct {
	AIName        string `json:"ai_name"`
	ProfilePath   string `json:"profile_path"`
	CreatorName   string `json:"creator_name"`
	CreatorNature string `json:"creator_nature"`
}

type StorageConfig struct {
	BaseDir string `json:"base_dir"`
	// Backend "sqlite" (default) or "json"
	Backend string `json:"backend"`
	DBName  string `json:"db_name"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

type Config struct {
	Provider ProviderConfig `json:"provider"`
	Vision   VisionConfig   `json:"vision"`
	Speech   SpeechConfig   `json:"speech"`
	OCR      OCRConfig      `json:"ocr"`
	Session  SessionConfig  `json:"session"`
	Persona  PersonaConfig  `json:"persona"`
	Storage  StorageConfig  `json:"storage"`
	Log      LogConfig      `json:"log"`
}

type fileConfig struct {
	Provider *ProviderConfig `json:"provider"`
	Vision   *VisionConfig   `json:"vision"`
	Speech   *SpeechConfig   `json:"speech"`
	OCR      *OCRConfig      `json:"ocr"`
	Session  *SessionConfig  `json:"session"`
	Persona  *PersonaConfig  `json:"persona"`
	Storage  *StorageConfig  `json:"storage"`
	Log      *LogConfig      `json:"log"`
}

func Default() Config {
	return Config{
		Provider: ProviderConfig{
			BaseURL:    DefaultBaseURL,
			Model:      DefaultModel,
			Models:     []string{DefaultModel},
			TimeoutMS:  DefaultTimeoutMS,
			MaxRetries: DefaultMaxRetries,
		},
		Vision: VisionConfig{
			Model:     DefaultVisionModel,
			MaxTokens: DefaultVisionMaxTokens,
		},
		Speech: SpeechConfig{
			BaseURL: DefaultSpeechBaseURL,
			Model:   DefaultSpeechModel,
			Voice:   DefaultSpeechVoice,
		},
		OCR: OCRConfig{
			Binary:    DefaultOCRBinary,
			Languages: DefaultOCRLanguages,
			TimeoutMS: DefaultOCRTimeoutMS,
		},
		Session: SessionConfig{
			UserID:       DefaultUserID,
			ContextTurns: DefaultContextTurns,
			Locale:       DefaultLocale,
		},
		Persona: PersonaConfig{
			AIName: DefaultAIName,
		},
		Storage: StorageConfig{
			BaseDir: "~/.companion",
			Backend: "sqlite",
			DBName:  "rafiq_memory.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load 按优先级加载配置：默认值 → 全局 → 项目 → 环境变量
// Load layers config: defaults → global file → project file → environment
func Load(path string) (Config, error) {
	cfg := Default()

	for _, globalPath := range globalConfigPaths() {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("COMPANION_CONFIG_PATH")); envPath != "" && resolvedPath == "" {
		resolvedPath = envPath
	}
	if resolvedPath == "" {
		resolvedPath = findProjectConfigPath()
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return applyEnv(cfg)
}

// Warnings 返回不致命的配置问题（缺少 API key 时进入降级模式）
// Warnings reports non-fatal configuration problems; a missing API key means degraded mode
func (c Config) Warnings() []error {
	var out []error
	if strings.TrimSpace(c.Provider.APIKey) == "" {
		out = append(out, ErrMissingAPIKey)
	}
	return out
}

// DBPath returns the SQLite database path.
func (c Config) DBPath() string {
	return filepath.Join(c.Storage.BaseDir, c.Storage.DBName)
}

func globalConfigPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(home, ".companion", "config.json")}
}

func findProjectConfigPath() string {
	candidates := []string{
		"companion.config.json",
		".companion/config.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	cleaned := stripJSONComments(data)
	var fileCfg fileConfig
	if err := json.Unmarshal(cleaned, &fileCfg); err != nil {
		return fmt.Errorf("parse config %q: %w", resolved, err)
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Provider != nil {
		cfg.Provider = mergeProvider(cfg.Provider, *fc.Provider)
	}
	if fc.Vision != nil {
		override := *fc.Vision
		setString(&cfg.Vision.Model, override.Model)
		setString(&cfg.Vision.Question, override.Question)
		setInt(&cfg.Vision.MaxTokens, override.MaxTokens)
	}
	if fc.Speech != nil {
		override := *fc.Speech
		setString(&cfg.Speech.BaseURL, override.BaseURL)
		setString(&cfg.Speech.APIKey, override.APIKey)
		setString(&cfg.Speech.Model, override.Model)
		setString(&cfg.Speech.Voice, override.Voice)
		setString(&cfg.Speech.OutputDir, override.OutputDir)
		if len(override.Player) > 0 {
			cfg.Speech.Player = append([]string(nil), override.Player...)
		}
	}
	if fc.OCR != nil {
		setString(&cfg.OCR.Binary, fc.OCR.Binary)
		setString(&cfg.OCR.Languages, fc.OCR.Languages)
		setInt(&cfg.OCR.TimeoutMS, fc.OCR.TimeoutMS)
	}
	if fc.Session != nil {
		setString(&cfg.Session.UserID, fc.Session.UserID)
		setString(&cfg.Session.Locale, fc.Session.Locale)
		setInt(&cfg.Session.ContextTurns, fc.Session.ContextTurns)
	}
	if fc.Persona != nil {
		setString(&cfg.Persona.AIName, fc.Persona.AIName)
		setString(&cfg.Persona.ProfilePath, fc.Persona.ProfilePath)
		setString(&cfg.Persona.CreatorName, fc.Persona.CreatorName)
		setString(&cfg.Persona.CreatorNature, fc.Persona.CreatorNature)
	}
	if fc.Storage != nil {
		setString(&cfg.Storage.BaseDir, fc.Storage.BaseDir)
		setString(&cfg.Storage.Backend, fc.Storage.Backend)
		setString(&cfg.Storage.DBName, fc.Storage.DBName)
	}
	if fc.Log != nil {
		setString(&cfg.Log.Level, fc.Log.Level)
		setString(&cfg.Log.Format, fc.Log.Format)
		setString(&cfg.Log.File, fc.Log.File)
	}
}

func mergeProvider(base ProviderConfig, override ProviderConfig) ProviderConfig {
	setString(&base.BaseURL, override.BaseURL)
	setString(&base.Model, override.Model)
	setString(&base.APIKey, override.APIKey)
	if len(override.Models) > 0 {
		base.Models = append([]string(nil), override.Models...)
	}
	setInt(&base.TimeoutMS, override.TimeoutMS)
	setInt(&base.MaxRetries, override.MaxRetries)
	return base
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func normalize(cfg *Config) error {
	def := Default()
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = def.Provider.BaseURL
	}
	cfg.Provider.BaseURL = strings.TrimRight(cfg.Provider.BaseURL, "/")
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = def.Provider.Model
	}
	if cfg.Provider.TimeoutMS <= 0 {
		cfg.Provider.TimeoutMS = def.Provider.TimeoutMS
	}
	if cfg.Provider.MaxRetries < 0 {
		cfg.Provider.MaxRetries = 0
	}
	cfg.Provider.Models = normalizeModelList(cfg.Provider.Models)
	if !containsString(cfg.Provider.Models, cfg.Provider.Model) {
		cfg.Provider.Models = normalizeModelList(append([]string{cfg.Provider.Model}, cfg.Provider.Models...))
	}

	if cfg.Vision.Model == "" {
		cfg.Vision.Model = def.Vision.Model
	}
	if cfg.Vision.MaxTokens <= 0 {
		cfg.Vision.MaxTokens = def.Vision.MaxTokens
	}
	if cfg.Speech.Model == "" {
		cfg.Speech.Model = def.Speech.Model
	}
	if cfg.Speech.Voice == "" {
		cfg.Speech.Voice = def.Speech.Voice
	}
	if cfg.Speech.BaseURL == "" {
		cfg.Speech.BaseURL = def.Speech.BaseURL
	}
	if cfg.OCR.Binary == "" {
		cfg.OCR.Binary = def.OCR.Binary
	}
	if cfg.OCR.Languages == "" {
		cfg.OCR.Languages = def.OCR.Languages
	}
	if cfg.OCR.TimeoutMS <= 0 {
		cfg.OCR.TimeoutMS = def.OCR.TimeoutMS
	}

	if strings.TrimSpace(cfg.Session.UserID) == "" {
		cfg.Session.UserID = def.Session.UserID
	}
	if cfg.Session.ContextTurns <= 0 {
		cfg.Session.ContextTurns = def.Session.ContextTurns
	}
	if cfg.Session.Locale == "" {
		cfg.Session.Locale = def.Session.Locale
	}
	if cfg.Persona.AIName == "" {
		cfg.Persona.AIName = def.Persona.AIName
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "", "sqlite":
		cfg.Storage.Backend = "sqlite"
	case "json":
		cfg.Storage.Backend = "json"
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if cfg.Storage.BaseDir == "" {
		cfg.Storage.BaseDir = def.Storage.BaseDir
	}
	storageDir, err := expandPath(cfg.Storage.BaseDir)
	if err != nil {
		return err
	}
	cfg.Storage.BaseDir = storageDir
	if cfg.Storage.DBName == "" {
		cfg.Storage.DBName = def.Storage.DBName
	}

	if cfg.Speech.OutputDir == "" {
		cfg.Speech.OutputDir = filepath.Join(cfg.Storage.BaseDir, "audio")
	}
	if cfg.Speech.OutputDir, err = expandPath(cfg.Speech.OutputDir); err != nil {
		return err
	}
	if cfg.Persona.ProfilePath != "" {
		if cfg.Persona.ProfilePath, err = expandPath(cfg.Persona.ProfilePath); err != nil {
			return err
		}
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Log.Format != "text" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(cfg.Storage.BaseDir, "companion.log")
	}
	return nil
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("COMPANION_BASE_URL")); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPANION_MODEL")); v != "" {
		cfg.Provider.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPANION_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	} else if v := strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" && cfg.Speech.APIKey == "" {
		cfg.Speech.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPANION_USER_ID")); v != "" {
		cfg.Session.UserID = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPANION_LOCALE")); v != "" {
		cfg.Session.Locale = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPANION_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPANION_CONTEXT_TURNS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid COMPANION_CONTEXT_TURNS: %q", v)
		}
		cfg.Session.ContextTurns = n
	}
	if v := strings.TrimSpace(os.Getenv("COMPANION_HOME")); v != "" {
		cfg.Storage.BaseDir = v
		// 派生路径随 base dir 变化 / Derived paths follow the base dir
		cfg.Speech.OutputDir = ""
		cfg.Log.File = ""
	}

	return cfg, normalize(&cfg)
}

func normalizeModelList(models []string) []string {
	out := make([]string, 0, len(models))
	seen := map[string]struct{}{}
	for _, m := range models {
		trimmed := strings.TrimSpace(m)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func containsString(items []string, needle string) bool {
	for _, item := range items {
		if item == needle {
			return true
		}
	}
	return false
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}

func stripJSONComments(data []byte) []byte {
	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	out := bytes.Buffer{}

	for i := 0; i < len(data); i++ {
		c := data[i]
		next := byte(0)
		if i+1 < len(data) {
			next = data[i+1]
		}

		switch state {
		case stateNormal:
			if c == '"' {
				state = stateString
				out.WriteByte(c)
				continue
			}
			if c == '/' && next == '/' {
				state = stateLineComment
				i++
				continue
			}
			if c == '/' && next == '*' {
				state = stateBlockComment
				i++
				continue
			}
			out.WriteByte(c)
		case stateString:
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				out.WriteByte(c)
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return out.Bytes()
}

// WriteProviderModel 将 provider.model 写入项目配置（./.companion/config.json）；目录不存在则创建
// WriteProviderModel writes provider.model to project config (./.companion/config.json); creates dir if needed
func WriteProviderModel(projectDir, model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return errors.New("model is empty")
	}
	dir := filepath.Join(strings.TrimSpace(projectDir), ".companion")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir .companion: %w", err)
	}
	path := filepath.Join(dir, "config.json")
	var out map[string]any
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(stripJSONComments(data), &out); err != nil {
			out = nil
		}
	}
	if out == nil {
		out = make(map[string]any)
	}
	providerMap, _ := out["provider"].(map[string]any)
	if providerMap == nil {
		providerMap = make(map[string]any)
	}
	providerMap["model"] = model
	out["provider"] = providerMap
	data, err = json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

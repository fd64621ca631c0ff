package bootstrap

import (
	"log/slog"

	"companion/internal/config"
	"companion/internal/media"
	"companion/internal/provider"
	"companion/internal/session"
)

func gatewayConfig(cfg config.Config, logger *slog.Logger) provider.OpenAIConfig {
	return provider.OpenAIConfig{
		BaseURL:         cfg.Provider.BaseURL,
		APIKey:          cfg.Provider.APIKey,
		Model:           cfg.Provider.Model,
		TimeoutMS:       cfg.Provider.TimeoutMS,
		MaxRetries:      cfg.Provider.MaxRetries,
		VisionModel:     cfg.Vision.Model,
		VisionMaxTokens: cfg.Vision.MaxTokens,
		SpeechBaseURL:   cfg.Speech.BaseURL,
		SpeechAPIKey:    cfg.Speech.APIKey,
		SpeechModel:     cfg.Speech.Model,
		SpeechVoice:     cfg.Speech.Voice,
		Logger:          logger,
	}
}

// buildMedia 组装 OCR、图像描述和语音适配器
// buildMedia assembles the OCR, vision and speech adapters
func buildMedia(cfg config.Config, gw *provider.OpenAIGateway) (session.TextExtractor, session.ImageDescriber, session.SpeechSynthesizer) {
	ocr := media.NewTesseractExtractor(cfg.OCR.Binary, cfg.OCR.Languages, cfg.OCR.TimeoutMS)
	vision := media.NewVisionDescriber(gw)
	vision.Question = cfg.Vision.Question
	speech := media.NewSpeechSynthesizer(gw, cfg.Speech.OutputDir, cfg.Speech.Player)
	return ocr, vision, speech
}

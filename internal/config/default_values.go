package config

const (
	DefaultBaseURL      = "https://openrouter.ai/api/v1"
	DefaultModel        = "mistralai/mistral-7b-instruct-v0.2"
	DefaultVisionModel  = "openai/gpt-4o"
	DefaultTimeoutMS    = 120000
	DefaultMaxRetries   = 2
	DefaultContextTurns = 10

	DefaultVisionMaxTokens = 500

	DefaultSpeechBaseURL = "https://api.openai.com/v1"
	DefaultSpeechModel   = "tts-1"
	DefaultSpeechVoice   = "alloy"

	DefaultOCRBinary    = "tesseract"
	DefaultOCRLanguages = "ara+eng"
	DefaultOCRTimeoutMS = 60000

	DefaultUserID = "default"
	DefaultLocale = "ar"
	DefaultAIName = "Rafiq (رفيق)"
)

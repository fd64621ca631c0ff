package i18n

// EnMessages English message catalog
var EnMessages = map[string]string{
	// Greeting (first assistant turn of a fresh session)
	"greeting": "Hello %s! I am your personal companion, how can I help you today?",

	// Diagnostics appended as assistant turns
	"diag.auth":               "Sorry, Rafiq cannot connect to the core intelligence right now (API Key Error).",
	"diag.provider":           "An error occurred while getting response from Rafiq's brain: %s",
	"diag.network":            "An error occurred while getting response from Rafiq's brain: %s",
	"diag.vision":             "An error occurred during Vision Analysis: %s",
	"diag.vision_unavailable": "Vision API is unavailable due to an API client error.",
	"diag.vision_image":       "Could not process image for Vision API.",
	"diag.ocr":                "An error occurred during OCR: %s",
	"diag.ocr_unavailable":    "Tesseract not found. Please ensure Tesseract is installed on your system and added to PATH.",

	// Media
	"ocr.heading":   "**🔍 Extracted Text (OCR):**",
	"image.working": "Analyzing image...",
	"audio.saved":   "Audio saved: %s",
	"audio.error":   "Error playing audio: %s",
	"audio.none":    "No assistant message to play",

	// UI (TUI/REPL)
	"app.title":         "%s - Personal Companion",
	"app.subtitle":      "Your Supportive Companion",
	"input.placeholder": "Speak to %s in Arabic or English...",
	"status.thinking":   "%s is thinking...",
	"status.ready":      "Ready",
	"sidebar.user":      "User",
	"sidebar.model":     "Model",
	"sidebar.context":   "Context",
	"sidebar.turns":     "%d of %d turns",
	"sidebar.tokens":    "~%d tokens",
	"keys.hint":         "enter send · ctrl+l clear · ctrl+c quit",

	// Commands
	"cmd.help":   "Show available commands",
	"cmd.clear":  "Clear chat memory",
	"cmd.model":  "Show or switch the chat model",
	"cmd.models": "List available models",
	"cmd.image":  "Analyze an image (ocr or vision)",
	"cmd.play":   "Synthesize speech for an assistant message",
	"cmd.quit":   "Exit application",

	// Errors
	"error.unknown_command": "Unknown command: %s",
	"error.usage":           "Usage: %s",
	"error.empty_input":     "Message is empty",
	"error.persist":         "Could not save history: %s",
	"error.models":          "Could not list models: %s",

	// Session / model
	"session.cleared": "Chat memory cleared",
	"model.current":   "Current model: %s",
	"model.switched":  "Model switched to: %s",
	"model.none":      "No models reported by the provider",

	// Startup
	"startup.missing_key":       "No API key configured; replies will report an API key error. Set OPENROUTER_API_KEY.",
	"startup.repl_mode":         "Running in line mode",
	"startup.store_unavailable": "History storage is unavailable (%v); this conversation will not be saved.",
}

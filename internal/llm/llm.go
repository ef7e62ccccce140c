// Package llm is the LLM post-processing port: a closed enumeration of
// backends (local, ollama, gemini) selected by config.LLMConfig.Backend and
// exposed behind one Provider interface.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbright/v2md/internal/config"
)

// ErrLLM wraps any post-processing failure from the active backend.
var ErrLLM = errors.New("llm: request failed")

// Provider is the LLM port used by the daemon's /llm/process and
// /llm/translate handlers.
type Provider interface {
	Process(ctx context.Context, text string) (string, error)
	Translate(ctx context.Context, text string, targetLanguage string) (string, error)
}

const (
	processSystemPrompt     = "You are a transcription post-processing assistant. Clean up the dictated text: fix punctuation and obvious recognition errors, preserve meaning and tone. Reply with only the corrected text."
	translateSystemPromptFmt = "Translate the following text to %s. Reply with only the translation, no commentary."
)

// New constructs the Provider selected by cfg.Backend.
func New(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Backend {
	case "local":
		return newOpenAIProvider(cfg.Local)
	case "ollama":
		return newOllamaProvider(cfg.Ollama), nil
	case "gemini":
		return newGeminiProvider(cfg.Gemini)
	default:
		return nil, fmt.Errorf("llm: unknown backend %q", cfg.Backend)
	}
}

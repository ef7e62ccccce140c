package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/rbright/v2md/internal/config"
)

// geminiProvider is the "gemini" backend, talking to the Gemini API over
// the official google.golang.org/genai SDK.
type geminiProvider struct {
	client *genai.Client
	model  string
}

func newGeminiProvider(cfg config.GeminiLLMConfig) (*geminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: gemini backend requires api_key")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: gemini: new client: %w", err)
	}

	return &geminiProvider{client: client, model: model}, nil
}

func (p *geminiProvider) Process(ctx context.Context, text string) (string, error) {
	return p.generate(ctx, processSystemPrompt, text)
}

func (p *geminiProvider) Translate(ctx context.Context, text string, targetLanguage string) (string, error) {
	return p.generate(ctx, fmt.Sprintf(translateSystemPromptFmt, targetLanguage), text)
}

func (p *geminiProvider) generate(ctx context.Context, systemPrompt, text string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(text), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %v", ErrLLM, err)
	}

	out := resp.Text()
	if out == "" {
		return "", fmt.Errorf("%w: gemini: empty response", ErrLLM)
	}
	return out, nil
}

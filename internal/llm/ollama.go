package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/v2md/internal/config"
)

// ollamaProvider is a minimal REST client for a local Ollama daemon's
// /api/generate endpoint. github.com/ollama/ollama is the server module,
// not a client SDK, so this talks to it over stdlib net/http instead of a
// third-party dependency (see DESIGN.md).
type ollamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

func newOllamaProvider(cfg config.OllamaLLMConfig) *ollamaProvider {
	model := cfg.Model
	if model == "" {
		model = "llama3.1"
	}
	return &ollamaProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *ollamaProvider) Process(ctx context.Context, text string) (string, error) {
	return p.generate(ctx, processSystemPrompt, text)
}

func (p *ollamaProvider) Translate(ctx context.Context, text string, targetLanguage string) (string, error) {
	return p.generate(ctx, fmt.Sprintf(translateSystemPromptFmt, targetLanguage), text)
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (p *ollamaProvider) generate(ctx context.Context, systemPrompt, text string) (string, error) {
	if p.baseURL == "" {
		return "", fmt.Errorf("%w: ollama: base_url is empty", ErrLLM)
	}

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  p.model,
		Prompt: text,
		System: systemPrompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("%w: ollama: encode request: %v", ErrLLM, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: ollama: build request: %v", ErrLLM, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: ollama: request failed: %v", ErrLLM, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: ollama: HTTP %d", ErrLLM, resp.StatusCode)
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: ollama: decode response: %v", ErrLLM, err)
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", fmt.Errorf("%w: ollama: empty response", ErrLLM)
	}
	return out.Response, nil
}

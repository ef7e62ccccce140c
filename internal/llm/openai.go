package llm

import (
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/rbright/v2md/internal/config"
)

// openAIProvider is the "local" backend: any OpenAI-compatible chat
// completions server (llama.cpp server, vLLM, LM Studio, or OpenAI itself).
type openAIProvider struct {
	client oai.Client
	model  string
}

func newOpenAIProvider(cfg config.LocalLLMConfig) (*openAIProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm: local backend requires base_url")
	}
	model := cfg.Model
	if model == "" {
		model = "local-model"
	}

	opts := []option.RequestOption{option.WithBaseURL(cfg.BaseURL)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	return &openAIProvider{client: oai.NewClient(opts...), model: model}, nil
}

func (p *openAIProvider) Process(ctx context.Context, text string) (string, error) {
	return p.complete(ctx, processSystemPrompt, text)
}

func (p *openAIProvider) Translate(ctx context.Context, text string, targetLanguage string) (string, error) {
	return p.complete(ctx, fmt.Sprintf(translateSystemPromptFmt, targetLanguage), text)
}

func (p *openAIProvider) complete(ctx context.Context, systemPrompt, text string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: local: %v", ErrLLM, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: local: empty response", ErrLLM)
	}
	return resp.Choices[0].Message.Content, nil
}

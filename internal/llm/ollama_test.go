package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbright/v2md/internal/config"
)

func TestOllamaProvider_ProcessSendsPromptAndSystem(t *testing.T) {
	var gotReq ollamaGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "cleaned text", Done: true})
	}))
	t.Cleanup(server.Close)

	p := newOllamaProvider(config.OllamaLLMConfig{BaseURL: server.URL, Model: "llama3.1"})
	out, err := p.Process(context.Background(), "uh dictated text")
	require.NoError(t, err)
	assert.Equal(t, "cleaned text", out)
	assert.Equal(t, "uh dictated text", gotReq.Prompt)
	assert.Equal(t, processSystemPrompt, gotReq.System)
	assert.False(t, gotReq.Stream)
}

func TestOllamaProvider_TranslateUsesTargetLanguage(t *testing.T) {
	var gotReq ollamaGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "bonjour", Done: true})
	}))
	t.Cleanup(server.Close)

	p := newOllamaProvider(config.OllamaLLMConfig{BaseURL: server.URL})
	out, err := p.Translate(context.Background(), "hello", "French")
	require.NoError(t, err)
	assert.Equal(t, "bonjour", out)
	assert.Contains(t, gotReq.System, "French")
}

func TestOllamaProvider_EmptyBaseURL(t *testing.T) {
	p := newOllamaProvider(config.OllamaLLMConfig{})
	_, err := p.Process(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLLM)
}

func TestOllamaProvider_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	p := newOllamaProvider(config.OllamaLLMConfig{BaseURL: server.URL})
	_, err := p.Process(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestOllamaProvider_EmptyResponseIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "", Done: true})
	}))
	t.Cleanup(server.Close)

	p := newOllamaProvider(config.OllamaLLMConfig{BaseURL: server.URL})
	_, err := p.Process(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

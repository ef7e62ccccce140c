package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbright/v2md/internal/orchestrator"
)

// fakeOrchestrator implements the Orchestrator interface for handler tests.
type fakeOrchestrator struct {
	recording     bool
	modelLoaded   bool
	startErr      error
	stopErr       error
	stopText      string
	toggleErr     error
	processOut    orchestrator.LLMOutcome
	processErr    error
	translateOut  orchestrator.LLMOutcome
	translateErr  error
	subscribeCh   chan orchestrator.Event
}

func (f *fakeOrchestrator) Start(ctx context.Context, language string) error { return f.startErr }

func (f *fakeOrchestrator) Stop(ctx context.Context) (string, error) { return f.stopText, f.stopErr }

func (f *fakeOrchestrator) Toggle(ctx context.Context, language string) (bool, string, error) {
	if f.toggleErr != nil {
		return f.recording, "", f.toggleErr
	}
	if f.recording {
		f.recording = false
		return false, f.stopText, nil
	}
	f.recording = true
	return true, "", nil
}

func (f *fakeOrchestrator) IsRecording() bool { return f.recording }
func (f *fakeOrchestrator) ModelLoaded() bool { return f.modelLoaded }

func (f *fakeOrchestrator) ProcessLLM(ctx context.Context, text string) (orchestrator.LLMOutcome, error) {
	return f.processOut, f.processErr
}

func (f *fakeOrchestrator) Translate(ctx context.Context, text, targetLanguage string) (orchestrator.LLMOutcome, error) {
	return f.translateOut, f.translateErr
}

func (f *fakeOrchestrator) Subscribe() (uuid.UUID, <-chan orchestrator.Event) {
	if f.subscribeCh == nil {
		f.subscribeCh = make(chan orchestrator.Event, 1)
	}
	return uuid.New(), f.subscribeCh
}

func (f *fakeOrchestrator) Unsubscribe(id uuid.UUID) {}
func (f *fakeOrchestrator) WarmUp(ctx context.Context) {}
func (f *fakeOrchestrator) Shutdown(ctx context.Context) {}

func TestHandleStatus(t *testing.T) {
	orch := &fakeOrchestrator{recording: true, modelLoaded: true}
	srv := New(orch, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "recording", resp.State)
	assert.True(t, resp.Recording)
	assert.True(t, resp.ModelLoaded)
}

func TestHandleStart_Idempotent(t *testing.T) {
	orch := &fakeOrchestrator{startErr: orchestrator.ErrAlreadyRecording}
	srv := New(orch, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/start", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, statusRecording, resp.Status)
	assert.Contains(t, resp.Message, "already recording")
}

func TestHandleStop_Idempotent(t *testing.T) {
	orch := &fakeOrchestrator{stopErr: orchestrator.ErrNotRecording}
	srv := New(orch, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/stop", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, statusIdle, resp.Status)
	assert.Contains(t, resp.Message, "not recording")
}

func TestHandleStop_CopiesTextToClipboard(t *testing.T) {
	orch := &fakeOrchestrator{stopText: "hello world"}
	clip := &fakeClipboard{}
	srv := New(orch, clip, nil)

	req := httptest.NewRequest(http.MethodPost, "/stop", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, []string{"hello world"}, clip.written)
}

func TestHandleStop_SilenceOnlyRecordingReportsNoSpeechDetected(t *testing.T) {
	orch := &fakeOrchestrator{stopText: ""}
	clip := &fakeClipboard{}
	srv := New(orch, clip, nil)

	req := httptest.NewRequest(http.MethodPost, "/stop", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, statusIdle, resp.Status)
	assert.Empty(t, resp.Text)
	assert.Contains(t, resp.Message, "no se detectó voz")
	assert.Empty(t, clip.written)
}

func TestHandleToggle_SilenceOnlyRecordingReportsNoSpeechDetected(t *testing.T) {
	orch := &fakeOrchestrator{recording: true, stopText: ""}
	clip := &fakeClipboard{}
	srv := New(orch, clip, nil)

	req := httptest.NewRequest(http.MethodPost, "/toggle", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, statusIdle, resp.Status)
	assert.Contains(t, resp.Message, "no se detectó voz")
	assert.Empty(t, clip.written)
}

func TestHandleLLMTranslate_RejectsInvalidLanguage(t *testing.T) {
	orch := &fakeOrchestrator{}
	srv := New(orch, nil, nil)

	body, _ := json.Marshal(llmTranslateRequest{Text: "hi", TargetLanguage: "123"})
	req := httptest.NewRequest(http.MethodPost, "/llm/translate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, statusError, resp.Status)
}

func TestHandleLLMProcess_FallbackSetsWarningMessage(t *testing.T) {
	orch := &fakeOrchestrator{processOut: orchestrator.LLMOutcome{Text: "original", Fallback: true, Reason: "boom"}}
	srv := New(orch, nil, nil)

	body, _ := json.Marshal(llmProcessRequest{Text: "original"})
	req := httptest.NewRequest(http.MethodPost, "/llm/process", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "original", resp.Text)
	assert.Contains(t, resp.Message, "failed")
}

func TestHandleStart_SurfacesErrorEnvelope(t *testing.T) {
	orch := &fakeOrchestrator{startErr: errors.New("no microphone")}
	srv := New(orch, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/start", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, statusError, resp.Status)
}

func TestHandleHealth(t *testing.T) {
	srv := New(&fakeOrchestrator{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// fakeClipboard records Write calls for assertion.
type fakeClipboard struct {
	written []string
}

func (f *fakeClipboard) Write(ctx context.Context, text string) error {
	f.written = append(f.written, text)
	return nil
}

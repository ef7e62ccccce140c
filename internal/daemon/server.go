package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/rbright/v2md/internal/clipboard"
	"github.com/rbright/v2md/internal/orchestrator"
)

// heartbeatInterval is how often /ws/events pushes a heartbeat event.
const heartbeatInterval = 15 * time.Second

var targetLanguagePattern = regexp.MustCompile(`^[A-Za-z \-]{2,20}$`)

// Orchestrator is the subset of *orchestrator.Orchestrator the server needs.
// Defined here so the handler layer can be tested against a fake.
type Orchestrator interface {
	Start(ctx context.Context, language string) error
	Stop(ctx context.Context) (string, error)
	Toggle(ctx context.Context, language string) (recording bool, text string, err error)
	IsRecording() bool
	ModelLoaded() bool
	ProcessLLM(ctx context.Context, text string) (orchestrator.LLMOutcome, error)
	Translate(ctx context.Context, text, targetLanguage string) (orchestrator.LLMOutcome, error)
	Subscribe() (uuid.UUID, <-chan orchestrator.Event)
	Unsubscribe(id uuid.UUID)
	WarmUp(ctx context.Context)
	Shutdown(ctx context.Context)
}

// Server is the DaemonServer: a localhost HTTP surface plus one
// server-pushed WebSocket event channel (spec.md §4.5).
type Server struct {
	orch      Orchestrator
	clipboard clipboard.Writer
	logger    *slog.Logger
	mux       *http.ServeMux
}

// New constructs a Server. clipboardPort may be nil to disable the
// /llm/process copy-to-clipboard side effect.
func New(orch Orchestrator, clipboardPort clipboard.Writer, logger *slog.Logger) *Server {
	s := &Server{orch: orch, clipboard: clipboardPort, logger: logger}
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /toggle", s.handleToggle)
	s.mux.HandleFunc("POST /start", s.handleStart)
	s.mux.HandleFunc("POST /stop", s.handleStop)
	s.mux.HandleFunc("POST /llm/process", s.handleLLMProcess)
	s.mux.HandleFunc("POST /llm/translate", s.handleLLMTranslate)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ws/events", s.handleWSEvents)
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe binds addr and serves until ctx is canceled. A bind
// failure surfaces as a distinct error so the caller can map it to exit
// code 2 (spec.md §6).
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	httpServer := &http.Server{Handler: s}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	recording, text, err := s.orch.Toggle(r.Context(), req.Language)
	if err != nil {
		s.writeErrorEnvelope(w, err)
		return
	}

	if !recording && text == "" {
		s.writeEnvelope(w, envelope{Status: s.currentStatus(recording), Message: noSpeechDetectedMessage})
		return
	}
	if !recording {
		s.copyToClipboard(r.Context(), text)
	}

	s.writeEnvelope(w, envelope{Status: s.currentStatus(recording), Text: text})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	err := s.orch.Start(r.Context(), req.Language)
	if errors.Is(err, orchestrator.ErrAlreadyRecording) {
		s.writeEnvelope(w, envelope{Status: statusRecording, Message: "already recording"})
		return
	}
	if err != nil {
		s.writeErrorEnvelope(w, err)
		return
	}
	s.writeEnvelope(w, envelope{Status: statusRecording})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	text, err := s.orch.Stop(r.Context())
	if errors.Is(err, orchestrator.ErrNotRecording) {
		s.writeEnvelope(w, envelope{Status: statusIdle, Message: "not recording"})
		return
	}
	if err != nil {
		s.writeErrorEnvelope(w, err)
		return
	}

	if text == "" {
		s.writeEnvelope(w, envelope{Status: statusIdle, Message: noSpeechDetectedMessage})
		return
	}

	s.copyToClipboard(r.Context(), text)
	s.writeEnvelope(w, envelope{Status: statusIdle, Text: text})
}

func (s *Server) handleLLMProcess(w http.ResponseWriter, r *http.Request) {
	var req llmProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeValidationError(w, "malformed request body")
		return
	}

	outcome, err := s.orch.ProcessLLM(r.Context(), req.Text)
	if err != nil {
		s.writeErrorEnvelope(w, err)
		return
	}

	s.copyToClipboard(r.Context(), outcome.Text)

	resp := envelope{Status: s.currentStatus(s.orch.IsRecording()), Text: outcome.Text}
	if outcome.Fallback {
		resp.Message = "LLM post-processing failed; copied original text"
	}
	s.writeEnvelope(w, resp)
}

func (s *Server) handleLLMTranslate(w http.ResponseWriter, r *http.Request) {
	var req llmTranslateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeValidationError(w, "malformed request body")
		return
	}
	if !targetLanguagePattern.MatchString(req.TargetLanguage) {
		s.writeValidationError(w, "invalid target_language")
		return
	}

	outcome, err := s.orch.Translate(r.Context(), req.Text, req.TargetLanguage)
	if err != nil {
		s.writeErrorEnvelope(w, err)
		return
	}

	resp := envelope{Status: s.currentStatus(s.orch.IsRecording()), Text: outcome.Text}
	if outcome.Fallback {
		resp.Message = "translation failed; returning original text"
	}
	s.writeEnvelope(w, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	recording := s.orch.IsRecording()
	s.writeJSON(w, http.StatusOK, statusResponse{
		State:       s.currentStatus(recording),
		Recording:   recording,
		ModelLoaded: s.orch.ModelLoaded(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleWSEvents upgrades to a WebSocket connection and streams
// transcription_update and heartbeat events until the client disconnects
// (spec.md §4.5/§6).
func (s *Server) handleWSEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("ws accept failed", "error", err)
		}
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	id, ch := s.orch.Subscribe()
	defer s.orch.Unsubscribe(id)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
			state := statusIdle
			if s.orch.IsRecording() {
				state = statusRecording
			}
			s.pushEvent(ctx, conn, wsEvent{Event: "heartbeat", Data: heartbeatData{Timestamp: unixMillis(time.Now()), State: state}})
		case ev, ok := <-ch:
			if !ok {
				return
			}
			switch ev.Kind {
			case "transcription_update":
				s.pushEvent(ctx, conn, wsEvent{Event: "transcription_update", Data: transcriptionUpdateData{Text: ev.Text, Final: ev.Final}})
			case "heartbeat":
				s.pushEvent(ctx, conn, wsEvent{Event: "heartbeat", Data: heartbeatData{Timestamp: unixMillis(ev.Timestamp), State: ev.State}})
			}
		}
	}
}

func (s *Server) pushEvent(ctx context.Context, conn *websocket.Conn, ev wsEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil && s.logger != nil {
		s.logger.Debug("ws push failed", "error", err)
	}
}

func (s *Server) copyToClipboard(ctx context.Context, text string) {
	if s.clipboard == nil || text == "" {
		return
	}
	if err := s.clipboard.Write(ctx, text); err != nil && s.logger != nil {
		s.logger.Warn("clipboard write failed", "error", err)
	}
}

func (s *Server) currentStatus(recording bool) string {
	if recording {
		return statusRecording
	}
	return statusIdle
}

func (s *Server) writeValidationError(w http.ResponseWriter, message string) {
	s.writeEnvelope(w, envelope{Status: statusError, Message: message})
}

// writeErrorEnvelope converts a handler-surfaced error into a
// status="error" envelope with HTTP status 200. Malformed request bodies and
// invalid target languages go through writeValidationError instead, which
// also answers with HTTP 200 and a status="error" envelope.
func (s *Server) writeErrorEnvelope(w http.ResponseWriter, err error) {
	if s.logger != nil {
		s.logger.Error("handler error", "kind", orchestrator.Kind(err), "error", err)
	}
	s.writeEnvelope(w, envelope{Status: statusError, Message: fmt.Sprintf("%s: %v", orchestrator.Kind(err), err)})
}

func (s *Server) writeEnvelope(w http.ResponseWriter, env envelope) {
	s.writeJSON(w, http.StatusOK, env)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Package orchestrator is the single façade used by the DaemonServer: lazy
// service construction, the RecordingSession singleton, subscriber
// broadcast, and the start/stop/toggle/shutdown state guards.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/v2md/internal/audio"
	"github.com/rbright/v2md/internal/clipboard"
	"github.com/rbright/v2md/internal/config"
	"github.com/rbright/v2md/internal/filetranscriber"
	"github.com/rbright/v2md/internal/llm"
	"github.com/rbright/v2md/internal/model"
	"github.com/rbright/v2md/internal/notifier"
	"github.com/rbright/v2md/internal/runtime"
	"github.com/rbright/v2md/internal/transcriber"
)

// targetLanguagePattern validates /llm/translate's target language
// parameter (spec.md §4.5, §7 ValidationError).
var targetLanguagePattern = regexp.MustCompile(`^[A-Za-z \-]{2,20}$`)

// maxTextChars bounds text payloads handed to the LLM port (spec.md §4.5).
const maxTextChars = 10000

// LLMOutcome is the result of a /llm/process or /llm/translate call. A
// Fallback result means the backend failed and the caller should treat
// Text as the original input (spec.md §7: LLMError falls back to copying
// the original text).
type LLMOutcome struct {
	Text     string
	Fallback bool
	Reason   string
}

// recordingSession is the singleton lifecycle object while is_recording is
// true (spec.md §3 RecordingSession).
type recordingSession struct {
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan sessionResult
}

type sessionResult struct {
	text string
	err  error
}

// Orchestrator is the process-wide façade. All subordinate services are
// constructed lazily on first use.
type Orchestrator struct {
	cfg    config.Config
	logger *slog.Logger

	mu              sync.Mutex
	worker          *model.Worker
	workerStarted   bool
	recorder        *audio.Recorder
	transc          *transcriber.Transcriber
	clipboardPort   clipboard.Writer
	notifierPort    notifier.Notifier
	llmProvider     llm.Provider
	fileTranscriber *filetranscriber.FileTranscriber
	recordingFlag   *runtime.RecordingFlag

	session *recordingSession

	subMu       sync.Mutex
	subscribers map[uuid.UUID]*subscriber
}

// New constructs an Orchestrator. Nothing is instantiated eagerly; call
// WarmUp to trigger the PersistentModelWorker's background warmup.
func New(cfg config.Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:           cfg,
		logger:        logger,
		recordingFlag: runtime.NewRecordingFlag(cfg.Paths.RecordingFlagFile),
		subscribers:   make(map[uuid.UUID]*subscriber),
	}
}

// ensureWorker lazily constructs and starts the PersistentModelWorker.
// Caller must hold o.mu.
func (o *Orchestrator) ensureWorker(ctx context.Context) (*model.Worker, error) {
	if o.worker == nil {
		o.worker = model.NewWorker(o.cfg.Transcription.Whisper, o.logger)
	}
	if !o.workerStarted {
		if err := o.worker.Start(ctx); err != nil {
			return nil, err
		}
		o.workerStarted = true
	}
	return o.worker, nil
}

// ensureTranscriber lazily constructs the StreamingTranscriber, wiring its
// event callback to the orchestrator's broadcast.
func (o *Orchestrator) ensureTranscriber(ctx context.Context) (*transcriber.Transcriber, error) {
	worker, err := o.ensureWorker(ctx)
	if err != nil {
		return nil, err
	}
	if o.transc == nil {
		o.transc = transcriber.New(o.cfg.Transcription.Whisper, worker, nil, o.logger, func(ev transcriber.Event) {
			o.broadcast(Event{Kind: "transcription_update", Text: ev.Text, Final: ev.Final, Timestamp: ev.Time})
		})
	}
	return o.transc, nil
}

func (o *Orchestrator) ensureRecorder() *audio.Recorder {
	if o.recorder == nil {
		o.recorder = audio.NewRecorder(0)
	}
	return o.recorder
}

func (o *Orchestrator) ensureClipboard() clipboard.Writer {
	if o.clipboardPort == nil {
		if o.cfg.Clipboard.Enable {
			o.clipboardPort = clipboard.New()
		} else {
			o.clipboardPort = noopClipboard{}
		}
	}
	return o.clipboardPort
}

func (o *Orchestrator) ensureNotifier() notifier.Notifier {
	if o.notifierPort == nil {
		o.notifierPort = notifier.New(o.cfg.Notifications, o.logger)
	}
	return o.notifierPort
}

func (o *Orchestrator) ensureLLM() (llm.Provider, error) {
	if o.llmProvider == nil {
		provider, err := llm.New(o.cfg.LLM)
		if err != nil {
			return nil, err
		}
		o.llmProvider = provider
	}
	return o.llmProvider, nil
}

func (o *Orchestrator) ensureFileTranscriber(ctx context.Context) (*filetranscriber.FileTranscriber, error) {
	worker, err := o.ensureWorker(ctx)
	if err != nil {
		return nil, err
	}
	if o.fileTranscriber == nil {
		o.fileTranscriber = filetranscriber.New(o.cfg.Transcription.Transcoder, worker, o.logger)
	}
	return o.fileTranscriber, nil
}

// WarmUp triggers the worker's model load ahead of the first recording, as
// a non-blocking background operation per spec.md §4.5's startup lifecycle.
func (o *Orchestrator) WarmUp(ctx context.Context) {
	go func() {
		o.mu.Lock()
		_, err := o.ensureWorker(ctx)
		o.mu.Unlock()
		if err != nil && o.logger != nil {
			o.logger.Error("model warmup failed", "error", err)
		}
	}()
}

// ModelLoaded reports whether the resident recognizer has finished loading.
func (o *Orchestrator) ModelLoaded() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.workerStarted
}

// IsRecording reports whether a RecordingSession is currently active.
func (o *Orchestrator) IsRecording() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session != nil
}

// Start begins a new RecordingSession. Rejects if one is already active
// (spec.md §4.6 state guard).
func (o *Orchestrator) Start(ctx context.Context, language string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session != nil {
		return ErrAlreadyRecording
	}

	transc, err := o.ensureTranscriber(ctx)
	if err != nil {
		return err
	}
	rec := o.ensureRecorder()
	notif := o.ensureNotifier()

	sessionCtx, cancel := context.WithCancel(context.Background())
	if err := rec.Start(sessionCtx); err != nil {
		cancel()
		return err
	}

	if err := o.recordingFlag.Set(); err != nil && o.logger != nil {
		o.logger.Warn("failed to write recording flag", "error", err)
	}

	notif.ShowRecording(ctx)

	done := make(chan sessionResult, 1)
	go o.runSession(sessionCtx, rec, transc, language, done)

	o.session = &recordingSession{startedAt: time.Now(), cancel: cancel, done: done}
	return nil
}

// runSession drains rec through transc until sessionCtx is canceled by
// Stop, then performs the final commit and reports the assembled
// transcript.
func (o *Orchestrator) runSession(sessionCtx context.Context, rec *audio.Recorder, transc *transcriber.Transcriber, language string, done chan<- sessionResult) {
	for {
		frame, err := rec.WaitForData(sessionCtx)
		if err != nil {
			if sessionCtx.Err() != nil {
				break
			}
			var overrun *audio.ErrCaptureOverrun
			if errors.As(err, &overrun) {
				if o.logger != nil {
					o.logger.Warn("capture overrun", "dropped_frames", overrun.DroppedFrames)
				}
				transc.ProcessChunk(sessionCtx, frame.Samples, language)
				continue
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			break
		}
		transc.ProcessChunk(sessionCtx, frame.Samples, language)
	}

	text, err := transc.Stop(context.Background(), language)
	done <- sessionResult{text: text, err: err}
}

// Stop ends the active RecordingSession and returns its assembled final
// transcript. Rejects if idle (spec.md §4.6 state guard).
func (o *Orchestrator) Stop(ctx context.Context) (string, error) {
	o.mu.Lock()
	session := o.session
	if session == nil {
		o.mu.Unlock()
		return "", ErrNotRecording
	}
	rec := o.recorder
	notif := o.ensureNotifier()
	o.mu.Unlock()

	notif.ShowTranscribing(ctx)
	session.cancel()

	savePath := ""
	if dir := strings.TrimSpace(o.cfg.Paths.SaveRecordingsDir); dir != "" {
		savePath = filepath.Join(dir, fmt.Sprintf("v2md-%d.wav", time.Now().Unix()))
	}
	if rec != nil {
		if err := rec.Stop(savePath); err != nil && o.logger != nil {
			o.logger.Warn("recorder stop failed", "error", err)
		}
	}

	var result sessionResult
	select {
	case result = <-session.done:
	case <-ctx.Done():
		result = sessionResult{err: ctx.Err()}
	}

	if err := o.recordingFlag.Clear(); err != nil && o.logger != nil {
		o.logger.Warn("failed to clear recording flag", "error", err)
	}
	notif.Hide(ctx)

	o.mu.Lock()
	o.session = nil
	o.mu.Unlock()

	return result.text, result.err
}

// Toggle is total: it always resolves to Start or Stop (spec.md §4.6).
func (o *Orchestrator) Toggle(ctx context.Context, language string) (recording bool, text string, err error) {
	if o.IsRecording() {
		text, err = o.Stop(ctx)
		return false, text, err
	}
	err = o.Start(ctx, language)
	return true, "", err
}

// ProcessLLM delegates cleanup post-processing to the LLM port. On backend
// failure it falls back to echoing the original text (spec.md §7).
func (o *Orchestrator) ProcessLLM(ctx context.Context, text string) (LLMOutcome, error) {
	if len(text) > maxTextChars {
		return LLMOutcome{}, fmt.Errorf("%w: text exceeds %d characters", ErrValidation, maxTextChars)
	}

	provider, err := o.ensureLLM()
	if err != nil {
		return LLMOutcome{}, err
	}

	cleaned, err := provider.Process(ctx, text)
	if err != nil {
		if o.logger != nil {
			o.logger.Error("llm process failed, falling back to original text", "error", err)
		}
		return LLMOutcome{Text: text, Fallback: true, Reason: err.Error()}, nil
	}
	return LLMOutcome{Text: cleaned}, nil
}

// Translate delegates translation to the LLM port with a target language.
// Falls back to the original text on backend failure (spec.md §7).
func (o *Orchestrator) Translate(ctx context.Context, text, targetLanguage string) (LLMOutcome, error) {
	if len(text) > maxTextChars {
		return LLMOutcome{}, fmt.Errorf("%w: text exceeds %d characters", ErrValidation, maxTextChars)
	}
	if !targetLanguagePattern.MatchString(targetLanguage) {
		return LLMOutcome{}, fmt.Errorf("%w: invalid target language %q", ErrValidation, targetLanguage)
	}

	provider, err := o.ensureLLM()
	if err != nil {
		return LLMOutcome{}, err
	}

	translated, err := provider.Translate(ctx, text, targetLanguage)
	if err != nil {
		if o.logger != nil {
			o.logger.Error("llm translate failed, falling back to original text", "error", err)
		}
		return LLMOutcome{Text: text, Fallback: true, Reason: err.Error()}, nil
	}
	return LLMOutcome{Text: translated}, nil
}

// TranscribeFile routes a file-based transcription through the shared
// PersistentModelWorker.
func (o *Orchestrator) TranscribeFile(ctx context.Context, path, language string) (string, filetranscriber.Metrics, error) {
	o.mu.Lock()
	ft, err := o.ensureFileTranscriber(ctx)
	o.mu.Unlock()
	if err != nil {
		return "", filetranscriber.Metrics{}, err
	}
	return ft.Transcribe(ctx, path, language)
}

// StartHeartbeat broadcasts a heartbeat event on interval until ctx is
// canceled. The daemon does not call it: its /ws/events handler pushes
// heartbeats from its own ticker.
func (o *Orchestrator) StartHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.broadcast(Event{Kind: "heartbeat", State: o.stateString(), Timestamp: time.Now()})
		}
	}
}

func (o *Orchestrator) stateString() string {
	if o.IsRecording() {
		return "recording"
	}
	return "idle"
}

// Shutdown is safe to call from a signal handler: every subordinate
// failure is swallowed and logged (spec.md §4.6).
func (o *Orchestrator) Shutdown(ctx context.Context) {
	if o.IsRecording() {
		if _, err := o.Stop(ctx); err != nil && o.logger != nil {
			o.logger.Warn("shutdown: stop recording failed", "error", err)
		}
	}

	o.mu.Lock()
	worker := o.worker
	o.mu.Unlock()
	if worker != nil {
		worker.Stop()
	}

	o.subMu.Lock()
	for id, sub := range o.subscribers {
		close(sub.ch)
		delete(o.subscribers, id)
	}
	o.subMu.Unlock()
}

// noopClipboard is used when clipboard integration is disabled in config.
type noopClipboard struct{}

func (noopClipboard) Write(context.Context, string) error { return nil }

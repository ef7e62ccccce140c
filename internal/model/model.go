// Package model implements the PersistentModelWorker: a single dedicated
// goroutine that keeps one whisper.cpp recognizer resident and serializes
// access to it, preferring final-segment jobs over provisional ones.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/rbright/v2md/internal/config"
)

// Kind distinguishes a provisional (in-progress segment) inference job from
// a final (committed segment) one.
type Kind int

const (
	Provisional Kind = iota
	Final
)

// ErrModelLoad is returned when neither the accelerator nor CPU device could
// load the configured model.
var ErrModelLoad = errors.New("model: failed to load recognizer")

// ErrInference wraps a failure from the recognizer itself.
var ErrInference = errors.New("model: inference failed")

// ErrSuperseded is returned to a Submit caller whose job was bumped out of
// the single pending slot by a newer one before the worker got to it (the
// slot always prefers a Final over a Provisional, and otherwise the newest
// job wins). Without this signal the bumped caller would otherwise block on
// job.result until its own ctx is canceled, which for submitProvisional's
// background goroutine means the lifetime of the whole session.
var ErrSuperseded = errors.New("model: job superseded by a newer job")

// maxPromptChars bounds the initial prompt handed to the recognizer, per
// StreamingTranscriber's prompt-token exhaustion safeguard.
const maxPromptChars = 200

// trimPrompt right-trims a prompt string to at most limit runes.
func trimPrompt(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[len(r)-limit:])
}

// Job is one unit of inference work submitted to the worker.
type Job struct {
	Kind     Kind
	Samples  []float32
	Language string
	// Prompt seeds the recognizer's initial_prompt, truncated to 200
	// characters to avoid prompt-token exhaustion-induced looping.
	Prompt string
	result chan Result
}

// Result is the outcome of a Job.
type Result struct {
	Text string
	Err  error
}

// Worker is the PersistentModelWorker.
type Worker struct {
	cfg    config.WhisperConfig
	logger *slog.Logger

	mu      sync.Mutex
	model   *whisper.Model
	context *whisper.Context
	device  string // "accelerator" or "cpu", the device actually loaded

	slotMu  sync.Mutex
	pending *Job
	notify  chan struct{}

	idleTimer *time.Timer
	lastUsed  time.Time

	quit chan struct{}
	done chan struct{}
}

// NewWorker constructs a worker; Start must be called before Submit.
func NewWorker(cfg config.WhisperConfig, logger *slog.Logger) *Worker {
	return &Worker{
		cfg:    cfg,
		logger: logger,
		notify: make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the dedicated worker goroutine. Unless LazyLoad is set,
// the model is loaded eagerly.
func (w *Worker) Start(ctx context.Context) error {
	if !w.cfg.LazyLoad {
		if err := w.ensureLoaded(); err != nil {
			return err
		}
	}
	go w.run(ctx)
	return nil
}

// Submit enqueues a job, replacing any pending provisional job with a final
// one, and dropping an incoming provisional job if a final is already
// queued. It blocks until the job is processed, it is superseded by a newer
// job, or ctx is canceled.
func (w *Worker) Submit(ctx context.Context, job *Job) (Result, error) {
	job.result = make(chan Result, 1)

	w.slotMu.Lock()
	newPending, accepted, displaced := enqueuePolicy(w.pending, job)
	w.pending = newPending
	w.slotMu.Unlock()

	if displaced != nil {
		displaced.result <- Result{Err: ErrSuperseded}
	}

	if !accepted {
		return Result{}, nil
	}

	select {
	case w.notify <- struct{}{}:
	default:
	}

	select {
	case res := <-job.result:
		return res, res.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Stop signals the worker goroutine to exit and waits for it.
func (w *Worker) Stop() {
	close(w.quit)
	<-w.done
	w.unload()
}

// enqueuePolicy decides how an incoming job interacts with a queued one: the
// single job slot always prefers a Final over a Provisional, and otherwise
// the newest job wins. It returns the new slot contents, whether incoming
// was accepted into the slot (false means it was dropped without ever
// occupying it), and the job bumped out of the slot by incoming, if any
// (nil unless a previously queued job was replaced).
func enqueuePolicy(existing *Job, incoming *Job) (pending *Job, accepted bool, displaced *Job) {
	if existing == nil {
		return incoming, true, nil
	}
	if existing.Kind == Final && incoming.Kind == Provisional {
		return existing, false, nil
	}
	return incoming, true, existing
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	keepWarm := time.Duration(w.cfg.KeepWarmSeconds) * time.Second
	if keepWarm <= 0 {
		keepWarm = 120 * time.Second
	}

	idle := time.NewTimer(keepWarm)
	defer idle.Stop()

	for {
		select {
		case <-w.quit:
			return
		case <-ctx.Done():
			return
		case <-idle.C:
			w.unload()
			idle.Reset(keepWarm)
		case <-w.notify:
			w.processOne()
			idle.Reset(keepWarm)
		}
	}
}

func (w *Worker) processOne() {
	w.slotMu.Lock()
	job := w.pending
	w.pending = nil
	w.slotMu.Unlock()

	if job == nil {
		return
	}

	text, err := w.infer(job.Samples, job.Language, job.Prompt)
	job.result <- Result{Text: text, Err: err}
}

func (w *Worker) infer(samples []float32, language string, prompt string) (string, error) {
	if err := w.ensureLoaded(); err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastUsed = time.Now()

	if language != "" && language != "auto" {
		_ = w.context.SetLanguage(language)
	}

	if prompt = trimPrompt(prompt, maxPromptChars); prompt != "" {
		_ = w.context.SetInitialPrompt(prompt)
	}

	if err := w.context.Process(samples, nil); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInference, err)
	}

	var text string
	for _, segment := range w.context.Segments() {
		text += segment.Text
	}
	return text, nil
}

// ensureLoaded loads the model. When the configured device is "accelerator"
// and the load fails, it retries the same whisper.New(modelPath) call once
// and records the device as "cpu"; whisper.New takes only a path, so the
// retry uses the same load settings and ComputeType is not applied.
func (w *Worker) ensureLoaded() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model != nil {
		return nil
	}

	modelPath, err := resolveModelPath(w.cfg.Model)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	device := w.cfg.Device
	if device == "" {
		device = "accelerator"
	}

	model, err := whisper.New(modelPath)
	if err != nil && device == "accelerator" {
		if w.logger != nil {
			w.logger.Warn("accelerator model load failed, falling back to cpu", "error", err)
		}
		device = "cpu"
		model, err = whisper.New(modelPath)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	ctx, err := model.NewContext()
	if err != nil {
		model.Close()
		return fmt.Errorf("%w: new context: %v", ErrModelLoad, err)
	}
	if w.cfg.Language != "" && w.cfg.Language != "auto" {
		_ = ctx.SetLanguage(w.cfg.Language)
	}

	w.model = model
	w.context = ctx
	w.device = device
	w.lastUsed = time.Now()
	return nil
}

// unload frees the resident model, used on idle timeout and Stop.
func (w *Worker) unload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.context != nil {
		w.context.Free()
		w.context = nil
	}
	if w.model != nil {
		w.model.Close()
		w.model = nil
	}
}

// Device reports which device the model is currently (or most recently)
// loaded on, for status reporting.
func (w *Worker) Device() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.device
}

// ResolveModelPath exposes resolveModelPath for readiness diagnostics
// (doctor) so a model can be confirmed resolvable without loading it.
func ResolveModelPath(name string) (string, error) {
	return resolveModelPath(name)
}

// resolveModelPath finds a local ggml model file by name, checking the
// standard search locations used across the whisper.cpp Go ecosystem.
func resolveModelPath(name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	fileName := name
	if filepath.Ext(fileName) == "" {
		fileName = "ggml-" + fileName + ".bin"
	}

	candidates := []string{
		filepath.Join(home, ".local", "share", "v2md", "models", fileName),
		filepath.Join(home, ".cache", "whisper", fileName),
		filepath.Join("models", fileName),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("model %q not found in any of %v", name, candidates)
}

// Package transcriber implements the StreamingTranscriber: a commit-and-flush
// state machine that interleaves real-time partial feedback with
// high-quality final segments, backed by the PersistentModelWorker.
package transcriber

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/v2md/internal/audio"
	"github.com/rbright/v2md/internal/config"
	"github.com/rbright/v2md/internal/model"
	"github.com/rbright/v2md/internal/transcript"
)

// state is the per-session lifecycle state of the commit-and-flush loop.
type state int

const (
	stateIdle state = iota
	stateSpeech
	stateTrailing
)

const (
	minSegmentDefault        = 500 * time.Millisecond
	silenceCommitDefault     = 800 * time.Millisecond
	provisionalInterval      = 500 * time.Millisecond
	contextWindowCap         = 200
	defaultPreRollChunkCount = 3
)

// Inferencer is the PersistentModelWorker surface the transcriber needs.
type Inferencer interface {
	Submit(ctx context.Context, job *model.Job) (model.Result, error)
}

// Transcriber is one StreamingTranscriber instance, owning the state machine
// for a single active RecordingSession.
type Transcriber struct {
	minSegment    time.Duration
	silenceCommit time.Duration
	preRollCap    int
	assembleOpts  transcript.Options

	worker  Inferencer
	vad     VADProvider
	logger  *slog.Logger
	onEvent EventFunc

	mu                  sync.Mutex
	state               state
	segment             []float32
	segmentStart        time.Time
	preRoll             []float32
	silenceStart        time.Time
	lastProvisionalAt   time.Time
	lastProvisionalText string
	contextWindow       string
	finals              []string
	generation          int
}

// New constructs a Transcriber from the whisper/VAD configuration section.
// vad defaults to RMSVAD when nil.
func New(cfg config.WhisperConfig, worker Inferencer, vad VADProvider, logger *slog.Logger, onEvent EventFunc) *Transcriber {
	if vad == nil {
		vad = NewRMSVAD(cfg.VAD.Threshold)
	}

	minSegment := time.Duration(cfg.VAD.MinSpeechDurationMS) * time.Millisecond
	if minSegment <= 0 {
		minSegment = minSegmentDefault
	}
	silenceCommit := time.Duration(cfg.VAD.SilenceDurationMS) * time.Millisecond
	if silenceCommit <= 0 {
		silenceCommit = silenceCommitDefault
	}

	preRollSamples := cfg.VAD.PreRollMS * audio.SampleRate / 1000
	if preRollSamples <= 0 {
		preRollSamples = defaultPreRollChunkCount * audio.SampleRate / 10 // ~3 chunks at ~100ms
	}

	return &Transcriber{
		minSegment:    minSegment,
		silenceCommit: silenceCommit,
		preRollCap:    preRollSamples,
		assembleOpts:  transcript.Options{TrailingSpace: false, CapitalizeSentences: true},
		worker:        worker,
		vad:           vad,
		logger:        logger,
		onEvent:       onEvent,
		state:         stateIdle,
	}
}

// Run drives the commit-and-flush loop from recorder frames until ctx is
// canceled, then performs the external-stop finalization and returns the
// concatenation of all finalized spans.
// Run drains rec until ctx is canceled, feeding every frame through
// ProcessChunk, then performs the final commit-or-discard and returns the
// assembled transcript. The final commit is submitted on a background
// context rather than ctx, since ctx is expected to already be canceled by
// the time the loop exits (that cancellation is the stop signal) and a
// canceled context would otherwise fail the final inference before the
// worker goroutine gets a chance to run it.
func (t *Transcriber) Run(ctx context.Context, rec *audio.Recorder, language string) (string, error) {
	for {
		frame, err := rec.WaitForData(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}

			var overrun *audio.ErrCaptureOverrun
			if errors.As(err, &overrun) {
				if t.logger != nil {
					t.logger.Warn("capture overrun", "dropped_frames", overrun.DroppedFrames)
				}
				t.ProcessChunk(ctx, frame.Samples, language)
				continue
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			break
		}
		t.ProcessChunk(ctx, frame.Samples, language)
	}

	return t.Stop(context.Background(), language)
}

// ProcessChunk runs one tick of the algorithm over a newly captured chunk.
func (t *Transcriber) ProcessChunk(ctx context.Context, samples []float32, language string) {
	if len(samples) == 0 {
		return
	}

	now := time.Now()

	t.mu.Lock()
	preRollSnapshot := append([]float32(nil), t.preRoll...)
	t.pushPreRoll(samples)
	cur := t.state
	t.mu.Unlock()

	speech := t.vad.IsSpeech(samples)

	switch cur {
	case stateIdle:
		if !speech {
			return
		}
		t.mu.Lock()
		t.segmentStart = now
		t.segment = append(append([]float32(nil), preRollSnapshot...), samples...)
		t.state = stateSpeech
		t.mu.Unlock()

	case stateTrailing:
		if speech {
			t.mu.Lock()
			t.segment = append(t.segment, samples...)
			t.state = stateSpeech
			t.silenceStart = time.Time{}
			t.mu.Unlock()
			return
		}

		t.mu.Lock()
		t.segment = append(t.segment, samples...)
		if t.silenceStart.IsZero() {
			t.silenceStart = now
		}
		shouldCommit := now.Sub(t.silenceStart) >= t.silenceCommit && t.segmentDurationLocked() >= t.minSegment
		t.mu.Unlock()

		if shouldCommit {
			t.commit(ctx, language, now)
		}

	case stateSpeech:
		if !speech {
			t.mu.Lock()
			t.segment = append(t.segment, samples...)
			t.state = stateTrailing
			t.silenceStart = now
			t.mu.Unlock()
			return
		}

		t.mu.Lock()
		t.segment = append(t.segment, samples...)
		readyForProvisional := t.segmentDurationLocked() >= t.minSegment && now.Sub(t.lastProvisionalAt) >= provisionalInterval
		t.mu.Unlock()

		if readyForProvisional {
			t.submitProvisional(ctx, language, now)
		}
	}
}

// pushPreRoll appends samples to the pre-roll ring, evicting the oldest
// samples beyond the configured capacity. Caller holds t.mu.
func (t *Transcriber) pushPreRoll(samples []float32) {
	t.preRoll = append(t.preRoll, samples...)
	if excess := len(t.preRoll) - t.preRollCap; excess > 0 {
		t.preRoll = append([]float32(nil), t.preRoll[excess:]...)
	}
}

// segmentDurationLocked estimates elapsed segment duration from accumulated
// sample count. Caller holds t.mu.
func (t *Transcriber) segmentDurationLocked() time.Duration {
	seconds := float64(len(t.segment)) / float64(audio.SampleRate)
	return time.Duration(seconds * float64(time.Second))
}

// submitProvisional fires an async, best-effort provisional inference. The
// result is discarded if the segment has since been committed/flushed or if
// it repeats the previous provisional verbatim.
func (t *Transcriber) submitProvisional(ctx context.Context, language string, now time.Time) {
	t.mu.Lock()
	t.lastProvisionalAt = now
	gen := t.generation
	samplesCopy := append([]float32(nil), t.segment...)
	prompt := t.contextWindow
	t.mu.Unlock()

	go func() {
		res, err := t.worker.Submit(ctx, &model.Job{Kind: model.Provisional, Samples: samplesCopy, Language: language, Prompt: prompt})
		if err != nil {
			if t.logger != nil {
				t.logger.Debug("provisional inference failed", "error", err)
			}
			return
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		if gen != t.generation {
			return
		}
		if res.Text == t.lastProvisionalText {
			return
		}
		t.lastProvisionalText = res.Text
		t.emit(Event{Final: false, Text: res.Text, Time: time.Now()})
	}()
}

// commit performs a synchronous final inference, advances or clears the
// ContextWindow, appends to the finalized spans, and returns to Idle.
func (t *Transcriber) commit(ctx context.Context, language string, _ time.Time) {
	t.mu.Lock()
	samplesCopy := append([]float32(nil), t.segment...)
	prompt := t.contextWindow
	t.mu.Unlock()

	res, err := t.worker.Submit(ctx, &model.Job{Kind: model.Final, Samples: samplesCopy, Language: language, Prompt: prompt})

	var finalText string
	if err != nil {
		if t.logger != nil {
			t.logger.Error("final inference failed", "error", err)
		}
		finalText = ""
	} else {
		finalText = res.Text
	}

	t.mu.Lock()
	t.generation++
	if finalText == "" {
		t.contextWindow = ""
	} else {
		t.contextWindow = trimTail(t.contextWindow+" "+finalText, contextWindowCap)
		t.finals = append(t.finals, finalText)
	}
	t.segment = nil
	t.segmentStart = time.Time{}
	t.silenceStart = time.Time{}
	t.state = stateIdle
	t.lastProvisionalText = ""
	t.mu.Unlock()

	t.emit(Event{Final: true, Text: finalText, Time: time.Now()})
}

// Stop finalizes an active segment if it is long enough to commit, discards
// it otherwise, and returns the concatenation of all finalized spans. It then
// clears the finalized spans and the ContextWindow so the next session
// starts empty.
func (t *Transcriber) Stop(ctx context.Context, language string) (string, error) {
	t.mu.Lock()
	active := t.state != stateIdle
	longEnough := t.segmentDurationLocked() >= t.minSegment
	t.mu.Unlock()

	if active && longEnough {
		t.commit(ctx, language, time.Now())
	} else if active {
		t.mu.Lock()
		t.generation++
		t.segment = nil
		t.segmentStart = time.Time{}
		t.silenceStart = time.Time{}
		t.state = stateIdle
		t.lastProvisionalText = ""
		t.mu.Unlock()
	}

	t.mu.Lock()
	finals := append([]string(nil), t.finals...)
	t.finals = nil
	t.contextWindow = ""
	t.mu.Unlock()

	opts := t.assembleOpts
	opts.Language = language
	return transcript.Assemble(finals, opts), nil
}

func (t *Transcriber) emit(ev Event) {
	if t.onEvent != nil {
		t.onEvent(ev)
	}
}

// trimTail keeps at most limit runes of s, trimming from the front.
func trimTail(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[len(r)-limit:])
}

package audio

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxSessionDuration bounds the ring buffer capacity when the caller
// does not specify one.
const DefaultMaxSessionDuration = 10 * time.Minute

// Recorder is the AudioRecorder component: it owns the active capture
// backend and the SPSC ring that StreamingTranscriber reads frames from.
type Recorder struct {
	maxDuration time.Duration

	mu      sync.Mutex
	backend captureBackend
	ring    *ring
	cancel  context.CancelFunc
	active  bool

	rawMu  sync.Mutex
	raw    []float32
	record bool
}

// NewRecorder constructs a Recorder sized for maxDuration of 16kHz mono audio.
// A zero maxDuration uses DefaultMaxSessionDuration.
func NewRecorder(maxDuration time.Duration) *Recorder {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxSessionDuration
	}
	return &Recorder{maxDuration: maxDuration}
}

// framesCapacity sizes the ring in units of portaudio-sized buffers so the
// full session duration fits before the oldest frame is dropped.
func (r *Recorder) framesCapacity() int {
	seconds := r.maxDuration.Seconds()
	frames := int(seconds * SampleRate / framesPerBuffer)
	if frames < 4 {
		frames = 4
	}
	return frames
}

// Start opens the primary capture backend, falling back to the secondary
// backend on failure. Audio from whichever backend is running is pushed
// onto the ring buffer until Stop is called.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return fmt.Errorf("recorder already active")
	}

	captureCtx, cancel := context.WithCancel(ctx)
	r.ring = newRing(r.framesCapacity())

	onFrame := func(samples []float32) {
		r.ring.push(Frame{Samples: samples, Timestamp: time.Now()})
		r.rawMu.Lock()
		if r.record {
			r.raw = append(r.raw, samples...)
		}
		r.rawMu.Unlock()
	}

	primary := newPortaudioBackend()
	if err := primary.Open(captureCtx, onFrame); err == nil {
		r.backend = primary
		r.cancel = cancel
		r.active = true
		return nil
	} else {
		fallback := newMalgoBackend()
		if ferr := fallback.Open(captureCtx, onFrame); ferr != nil {
			cancel()
			return &ErrCaptureUnavailable{Primary: err, Fallback: ferr}
		}
		r.backend = fallback
		r.cancel = cancel
		r.active = true
		return nil
	}
}

// EnableRawCapture turns on in-memory accumulation of raw samples for later
// WAV export via Stop. Call before Start.
func (r *Recorder) EnableRawCapture() {
	r.rawMu.Lock()
	r.record = true
	r.raw = nil
	r.rawMu.Unlock()
}

// ReadChunk blocks up to timeout for the next frame, signalling overrun
// drops that occurred since the previous read.
func (r *Recorder) ReadChunk(timeout time.Duration) (Frame, error) {
	r.mu.Lock()
	ring := r.ring
	r.mu.Unlock()
	if ring == nil {
		return Frame{}, fmt.Errorf("recorder not started")
	}

	frame, ok := ring.pop(timeout)
	if !ok {
		return Frame{}, context.DeadlineExceeded
	}
	if dropped := ring.droppedAndReset(); dropped > 0 {
		return frame, &ErrCaptureOverrun{DroppedFrames: dropped}
	}
	return frame, nil
}

// WaitForData blocks until a frame is available, ctx is canceled, or a
// default 500ms timeout elapses (returning context.DeadlineExceeded so
// callers can poll for cancellation).
func (r *Recorder) WaitForData(ctx context.Context) (Frame, error) {
	type result struct {
		frame Frame
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := r.ReadChunk(500 * time.Millisecond)
		ch <- result{f, err}
	}()

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case res := <-ch:
		return res.frame, res.err
	}
}

// Stop halts the active backend. When savePath is non-empty, the accumulated
// raw session audio is written there as canonical WAV; without
// EnableRawCapture the file holds a header and no samples.
func (r *Recorder) Stop(savePath string) error {
	r.mu.Lock()
	backend := r.backend
	cancel := r.cancel
	r.active = false
	r.backend = nil
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var closeErr error
	if backend != nil {
		closeErr = backend.Close()
	}

	if savePath != "" {
		if err := r.saveWAV(savePath); err != nil {
			return err
		}
	}
	return closeErr
}

// RawSamples returns a copy of accumulated samples when raw capture was enabled.
func (r *Recorder) RawSamples() []float32 {
	r.rawMu.Lock()
	defer r.rawMu.Unlock()
	out := make([]float32, len(r.raw))
	copy(out, r.raw)
	return out
}

func (r *Recorder) saveWAV(path string) error {
	samples := r.RawSamples()
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteWAV(f, samples, SampleRate)
}

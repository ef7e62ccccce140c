package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

// portaudioBackend is the primary capture backend: PortAudio's default host
// API opened as a float32, mono, 16kHz input-only stream.
type portaudioBackend struct {
	mu          sync.Mutex
	stream      *portaudio.Stream
	initialized bool
}

func newPortaudioBackend() *portaudioBackend {
	return &portaudioBackend{}
}

func (b *portaudioBackend) Name() string { return "portaudio" }

func (b *portaudioBackend) Open(ctx context.Context, onFrame func([]float32)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}
	b.initialized = true

	callback := func(in []float32, _ []float32) {
		frame := make([]float32, len(in))
		copy(frame, in)
		onFrame(frame)
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, framesPerBuffer, callback)
	if err != nil {
		_ = portaudio.Terminate()
		b.initialized = false
		return fmt.Errorf("portaudio: open default stream: %w", err)
	}
	b.stream = stream

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		b.initialized = false
		return fmt.Errorf("portaudio: start stream: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = b.Close()
	}()

	return nil
}

func (b *portaudioBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.stream != nil {
		if stopErr := b.stream.Stop(); stopErr != nil {
			err = stopErr
		}
		if closeErr := b.stream.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		b.stream = nil
	}
	if b.initialized {
		if termErr := portaudio.Terminate(); termErr != nil && err == nil {
			err = termErr
		}
		b.initialized = false
	}
	return err
}

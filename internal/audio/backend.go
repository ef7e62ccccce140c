package audio

import "context"

// captureBackend opens a 16kHz mono float32 capture stream and delivers
// samples to onFrame until Close is called. Implementations must not block
// inside onFrame for long; the caller pushes frames onto a ring buffer.
type captureBackend interface {
	Name() string
	Open(ctx context.Context, onFrame func([]float32)) error
	Close() error
}

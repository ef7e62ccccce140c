// Package audio captures microphone input as 16kHz mono float32 frames
// through a primary capture backend with an automatic fallback to a second
// backend when the primary is unavailable.
package audio

import "time"

// SampleRate is the fixed capture rate the whole pipeline assumes.
const SampleRate = 16000

// Frame is one buffer of mono float32 samples pulled off the capture ring.
type Frame struct {
	Samples   []float32
	Timestamp time.Time
}

// ErrCaptureUnavailable is returned when neither the primary nor fallback
// backend could be opened.
type ErrCaptureUnavailable struct {
	Primary  error
	Fallback error
}

func (e *ErrCaptureUnavailable) Error() string {
	if e.Fallback == nil {
		return "capture unavailable: " + e.Primary.Error()
	}
	return "capture unavailable: primary: " + e.Primary.Error() + "; fallback: " + e.Fallback.Error()
}

// ErrCaptureOverrun is returned by ReadChunk, together with the frame it
// read, whenever the ring buffer dropped oldest unread frames to accept new
// audio since the previous read.
type ErrCaptureOverrun struct {
	DroppedFrames int
}

func (e *ErrCaptureOverrun) Error() string {
	return "capture overrun: dropped oldest frames to keep up with the producer"
}

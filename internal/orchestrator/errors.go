package orchestrator

import (
	"errors"

	"github.com/rbright/v2md/internal/audio"
	"github.com/rbright/v2md/internal/filetranscriber"
	"github.com/rbright/v2md/internal/llm"
	"github.com/rbright/v2md/internal/model"
)

// ErrAlreadyRecording is the start() state-guard violation.
var ErrAlreadyRecording = errors.New("orchestrator: already recording")

// ErrNotRecording is the stop() state-guard violation.
var ErrNotRecording = errors.New("orchestrator: not recording")

// ErrValidation covers malformed payloads, invalid target languages, and
// oversized text handed to the LLM port.
var ErrValidation = errors.New("orchestrator: validation failed")

// Kind classifies err into one of spec's named error-taxonomy kinds, for
// logging and for the HTTP layer's response envelopes. Unrecognized errors
// return "Error".
func Kind(err error) string {
	if err == nil {
		return ""
	}

	var captureUnavailable *audio.ErrCaptureUnavailable
	if errors.As(err, &captureUnavailable) {
		return "CaptureUnavailable"
	}
	var captureOverrun *audio.ErrCaptureOverrun
	if errors.As(err, &captureOverrun) {
		return "CaptureOverrun"
	}
	switch {
	case errors.Is(err, model.ErrModelLoad):
		return "ModelLoadError"
	case errors.Is(err, model.ErrInference):
		return "InferenceError"
	case errors.Is(err, filetranscriber.ErrTranscode):
		return "TranscoderError"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrAlreadyRecording):
		return "AlreadyRecording"
	case errors.Is(err, ErrNotRecording):
		return "NotRecording"
	case errors.Is(err, llm.ErrLLM):
		return "LLMError"
	default:
		return "Error"
	}
}

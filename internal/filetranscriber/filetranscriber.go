// Package filetranscriber implements the FileTranscriber: extension-based
// audio/video dispatch through an external transcoder subprocess, routed
// through the shared PersistentModelWorker.
package filetranscriber

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/v2md/internal/audio"
	"github.com/rbright/v2md/internal/config"
	"github.com/rbright/v2md/internal/model"
	"github.com/rbright/v2md/internal/transcript"
)

// ErrTranscode wraps a failure extracting or decoding the input file.
var ErrTranscode = errors.New("filetranscriber: transcode failed")

// ErrUnsupportedExtension is returned when the input path's extension
// matches neither the audio nor video allow-list.
var ErrUnsupportedExtension = errors.New("filetranscriber: unsupported file extension")

// batchDurationThreshold selects the batched decoding path once normalized
// audio exceeds this duration (spec: >30s).
const batchDurationThreshold = 30 * time.Second

// batchSize is the internal chunk count used by the batched decoding path.
const batchSize = 16

var audioExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".flac": true, ".ogg": true, ".m4a": true, ".aac": true, ".aiff": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".avi": true, ".webm": true,
}

// Inferencer is the PersistentModelWorker surface FileTranscriber needs.
type Inferencer interface {
	Submit(ctx context.Context, job *model.Job) (model.Result, error)
}

// Metrics captures per-call timing and sizing, logged at completion.
type Metrics struct {
	FileSizeBytes  int64
	AudioDuration  time.Duration
	ExtractionTime time.Duration
	InferenceTime  time.Duration
	RealTimeFactor float64
}

// FileTranscriber transcodes an on-disk audio or video file and runs it
// through the shared recognizer worker.
type FileTranscriber struct {
	cfg    config.TranscoderConfig
	worker Inferencer
	logger *slog.Logger
}

func New(cfg config.TranscoderConfig, worker Inferencer, logger *slog.Logger) *FileTranscriber {
	return &FileTranscriber{cfg: cfg, worker: worker, logger: logger}
}

// Transcribe dispatches by file extension, extracts normalized PCM via the
// configured transcoder subprocess, and returns the concatenated
// transcript.
func (f *FileTranscriber) Transcribe(ctx context.Context, path, language string) (string, Metrics, error) {
	var metrics Metrics

	info, err := os.Stat(path)
	if err != nil {
		return "", metrics, fmt.Errorf("%w: stat %s: %v", ErrTranscode, path, err)
	}
	metrics.FileSizeBytes = info.Size()

	kind, err := classify(path)
	if err != nil {
		return "", metrics, err
	}

	timeout := f.audioTimeout()
	if kind == kindVideo {
		timeout = f.videoTimeout()
	}

	extractCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	extractStart := time.Now()
	samples, err := f.extract(extractCtx, path, kind)
	metrics.ExtractionTime = time.Since(extractStart)
	if err != nil {
		return "", metrics, err
	}

	metrics.AudioDuration = time.Duration(float64(len(samples)) / float64(audio.SampleRate) * float64(time.Second))

	inferStart := time.Now()
	var finals []string
	if metrics.AudioDuration > batchDurationThreshold {
		finals, err = f.transcribeBatched(ctx, samples, language)
	} else {
		finals, err = f.transcribeWhole(ctx, samples, language)
	}
	metrics.InferenceTime = time.Since(inferStart)
	if err != nil {
		return "", metrics, err
	}

	if metrics.AudioDuration > 0 {
		metrics.RealTimeFactor = metrics.InferenceTime.Seconds() / metrics.AudioDuration.Seconds()
	}

	if f.logger != nil {
		f.logger.Info("file transcription complete",
			"path", path,
			"file_size_bytes", metrics.FileSizeBytes,
			"audio_duration_s", metrics.AudioDuration.Seconds(),
			"extraction_time_s", metrics.ExtractionTime.Seconds(),
			"inference_time_s", metrics.InferenceTime.Seconds(),
			"real_time_factor", metrics.RealTimeFactor,
		)
	}

	return transcript.Assemble(finals, transcript.Options{CapitalizeSentences: true, Language: language}), metrics, nil
}

type kind int

const (
	kindAudio kind = iota
	kindVideo
)

func classify(path string) (kind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if audioExtensions[ext] {
		return kindAudio, nil
	}
	if videoExtensions[ext] {
		return kindVideo, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
}

func (f *FileTranscriber) audioTimeout() time.Duration {
	if f.cfg.AudioTimeoutS > 0 {
		return time.Duration(f.cfg.AudioTimeoutS) * time.Second
	}
	return 120 * time.Second
}

func (f *FileTranscriber) videoTimeout() time.Duration {
	if f.cfg.VideoTimeoutS > 0 {
		return time.Duration(f.cfg.VideoTimeoutS) * time.Second
	}
	return 300 * time.Second
}

// extract runs the configured transcoder binary as a subprocess, streaming
// raw 32-bit float LE / 16 kHz mono PCM over its stdout pipe.
func (f *FileTranscriber) extract(ctx context.Context, path string, k kind) ([]float32, error) {
	bin := f.cfg.Binary
	if bin == "" {
		bin = "ffmpeg"
	}

	args := []string{"-i", path, "-f", "f32le", "-ar", fmt.Sprintf("%d", audio.SampleRate), "-ac", "1"}
	if k == kindVideo {
		args = append(args, "-vn")
	}
	if extra, err := config.ParseExtraArgs(f.cfg.ExtraArgs); err == nil {
		args = append(args, extra...)
	}
	args = append(args, "-loglevel", "error", "pipe:1")

	cmd := exec.CommandContext(ctx, bin, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrTranscode, err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", ErrTranscode, bin, err)
	}

	raw, readErr := io.ReadAll(stdout)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: timed out decoding %s", ErrTranscode, path)
	}
	if waitErr != nil {
		return nil, fmt.Errorf("%w: %s exited with error: %v: %s", ErrTranscode, bin, waitErr, strings.TrimSpace(stderr.String()))
	}
	if readErr != nil {
		return nil, fmt.Errorf("%w: read stdout: %v", ErrTranscode, readErr)
	}

	return decodeFloat32LE(raw), nil
}

func decodeFloat32LE(raw []byte) []float32 {
	n := len(raw) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}

func (f *FileTranscriber) transcribeWhole(ctx context.Context, samples []float32, language string) ([]string, error) {
	res, err := f.worker.Submit(ctx, &model.Job{Kind: model.Final, Samples: samples, Language: language})
	if err != nil {
		return nil, fmt.Errorf("%w: inference: %v", ErrTranscode, err)
	}
	if res.Text == "" {
		return nil, nil
	}
	return []string{res.Text}, nil
}

// transcribeBatched splits the normalized audio into batchSize chunks and
// submits each as an independent final job, preserving I2 (one inference in
// flight at a time across all sources) by submitting sequentially — the
// PersistentModelWorker's single-slot queue already serializes these; the
// batching here only bounds memory and keeps individual jobs small.
func (f *FileTranscriber) transcribeBatched(ctx context.Context, samples []float32, language string) ([]string, error) {
	chunkSamples := len(samples) / batchSize
	if chunkSamples == 0 {
		return f.transcribeWhole(ctx, samples, language)
	}

	var finals []string
	for start := 0; start < len(samples); start += chunkSamples {
		end := start + chunkSamples
		if end > len(samples) || len(samples)-end < chunkSamples {
			end = len(samples)
		}
		chunk := samples[start:end]
		res, err := f.worker.Submit(ctx, &model.Job{Kind: model.Final, Samples: chunk, Language: language})
		if err != nil {
			return nil, fmt.Errorf("%w: batched inference: %v", ErrTranscode, err)
		}
		if res.Text != "" {
			finals = append(finals, res.Text)
		}
		if end >= len(samples) {
			break
		}
	}
	return finals, nil
}

// Package notifier is the desktop notification port. It surfaces recording
// and error state to the user without the transcription pipeline knowing how
// notifications are actually delivered.
package notifier

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/v2md/internal/config"
)

// Notifier is the session-facing notification contract.
type Notifier interface {
	ShowRecording(ctx context.Context)
	ShowTranscribing(ctx context.Context)
	ShowError(ctx context.Context, text string)
	Hide(ctx context.Context)
}

// Desktop delivers notifications over the freedesktop DBus Notifications
// interface via busctl, replacing the prior notification each time so only
// one status bubble is ever visible per recording session.
type Desktop struct {
	cfg    config.NotificationsConfig
	logger *slog.Logger

	mu    sync.Mutex
	lastID uint32
}

// New constructs a Desktop notifier from config. If notifications are
// disabled, the returned Notifier is a no-op.
func New(cfg config.NotificationsConfig, logger *slog.Logger) Notifier {
	if !cfg.Enable {
		return noop{}
	}
	return &Desktop{cfg: cfg, logger: logger}
}

// ShowRecording displays the active-recording indicator.
func (d *Desktop) ShowRecording(ctx context.Context) {
	d.run(ctx, kindRecording, 300*time.Millisecond, "Listening…")
}

// ShowTranscribing displays the post-capture transcription indicator.
func (d *Desktop) ShowTranscribing(ctx context.Context) {
	d.run(ctx, kindTranscribing, 300*time.Millisecond, "Transcribing…")
}

// ShowError displays an error-state notification. Error bubbles carry the
// critical urgency hint and a longer timeout so the shell doesn't auto-expire
// them at the same pace as the recording/transcribing status bubbles.
func (d *Desktop) ShowError(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		text = "An error occurred"
	}
	d.run(ctx, kindError, 1600*time.Millisecond, text)
}

// Hide dismisses the currently displayed notification, if any.
func (d *Desktop) Hide(ctx context.Context) {
	d.mu.Lock()
	id := d.lastID
	d.lastID = 0
	d.mu.Unlock()
	if id == 0 {
		return
	}
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := d.dismiss(runCtx, id); err != nil {
		d.log("notifier dismiss failed", err)
	}
}

func (d *Desktop) run(ctx context.Context, kind notifyKind, timeout time.Duration, text string) {
	d.mu.Lock()
	replaceID := d.lastID
	d.mu.Unlock()

	appName := strings.TrimSpace(d.cfg.Backend)
	if appName == "" {
		appName = "v2md"
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id, err := d.notify(runCtx, appName, replaceID, kind, text, int(timeout/time.Millisecond))
	if err != nil {
		d.log("notifier dispatch failed", err)
		return
	}

	d.mu.Lock()
	d.lastID = id
	d.mu.Unlock()
}

func (d *Desktop) log(message string, err error) {
	if d.logger == nil || err == nil {
		return
	}
	d.logger.Debug(message, "error", err.Error())
}

// noop is used when notifications are disabled in config.
type noop struct{}

func (noop) ShowRecording(context.Context)      {}
func (noop) ShowTranscribing(context.Context)   {}
func (noop) ShowError(context.Context, string)  {}
func (noop) Hide(context.Context)               {}

// Package clipboard is the desktop clipboard port used to commit final
// transcripts. It wraps the platform clipboard behind a small interface so
// the transcription pipeline never depends on a concrete desktop API.
package clipboard

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"
)

// Writer is the clipboard port. Only the capability the daemon needs —
// replacing clipboard contents — is exposed.
type Writer interface {
	Write(ctx context.Context, text string) error
}

// System is the concrete Writer backed by the host clipboard.
type System struct{}

// New constructs the system clipboard port.
func New() *System {
	return &System{}
}

// Write replaces the clipboard contents with text. No-op for empty text,
// matching the daemon's rule that empty final transcripts never commit.
func (s *System) Write(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard: write: %w", err)
	}
	return nil
}

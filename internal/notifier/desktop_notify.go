package notifier

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// notifyKind distinguishes the notification states v2md surfaces. Each kind
// carries its own DBus icon and urgency hint so the desktop shell can style
// them differently — most shells dim or auto-expire a low-urgency bubble but
// keep a critical one on screen until the user dismisses it.
type notifyKind int

const (
	kindRecording notifyKind = iota
	kindTranscribing
	kindError
)

const (
	urgencyLow      byte = 0
	urgencyCritical byte = 2
)

func (k notifyKind) icon() string {
	switch k {
	case kindRecording:
		return "audio-input-microphone"
	case kindTranscribing:
		return "accessories-text-editor"
	case kindError:
		return "dialog-error"
	default:
		return ""
	}
}

func (k notifyKind) urgency() byte {
	if k == kindError {
		return urgencyCritical
	}
	return urgencyLow
}

// notify sends a freedesktop notification over DBus via busctl, tagging it
// with the icon and urgency hint for kind, and returns the ID the server
// assigned so a later bubble can replace it in place.
func (d *Desktop) notify(ctx context.Context, appName string, replaceID uint32, kind notifyKind, summary string, timeoutMS int) (uint32, error) {
	args := []string{
		"--user", "call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		"Notify",
		"susssasa{sv}i",
		appName,
		strconv.FormatUint(uint64(replaceID), 10),
		kind.icon(),
		summary,
		"",
		"0",
		"1", "urgency", "y", strconv.Itoa(int(kind.urgency())),
		strconv.Itoa(timeoutMS),
	}

	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	if err != nil {
		return 0, wrapBusctlError("desktop notify", out, err)
	}

	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", strings.TrimSpace(string(out)))
	}

	value, parseErr := strconv.ParseUint(fields[1], 10, 32)
	if parseErr != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], parseErr)
	}
	return uint32(value), nil
}

// dismiss requests explicit close by notification ID.
func (d *Desktop) dismiss(ctx context.Context, id uint32) error {
	args := []string{
		"--user", "call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		"CloseNotification",
		"u",
		strconv.FormatUint(uint64(id), 10),
	}

	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	if err != nil {
		return wrapBusctlError("desktop dismiss", out, err)
	}
	return nil
}

func wrapBusctlError(op string, out []byte, err error) error {
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	return fmt.Errorf("%s failed: %w (%s)", op, err, trimmed)
}

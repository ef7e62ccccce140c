// Package doctor runs runtime readiness diagnostics for config, the
// transcoder binary, the clipboard and notification ports, the ASR model
// file, and the configured LLM backend. Audio capture devices are not
// probed.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/v2md/internal/config"
	"github.com/rbright/v2md/internal/model"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", loaded.Path),
	})

	checks = append(checks, checkModelResolvable(cfg.Transcription.Whisper))
	checks = append(checks, checkBinary(cfg.Transcription.Transcoder.Binary, "transcoder binary is available"))

	if cfg.Clipboard.Enable {
		checks = append(checks, checkClipboardPort())
	}

	if cfg.Notifications.Enable {
		checks = append(checks, checkNotificationBackend(cfg.Notifications))
	}

	checks = append(checks, checkLLMBackend(cfg.LLM))

	return Report{Checks: checks}
}

// checkModelResolvable confirms the configured whisper model file can be
// found in one of the standard search locations without loading it.
func checkModelResolvable(cfg config.WhisperConfig) Check {
	path, err := model.ResolveModelPath(cfg.Model)
	if err != nil {
		return Check{Name: "model.resolve", Pass: false, Message: err.Error()}
	}
	return Check{Name: "model.resolve", Pass: true, Message: fmt.Sprintf("found at %s", path)}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	if strings.TrimSpace(bin) == "" {
		return Check{Name: "binary", Pass: false, Message: "binary name is empty"}
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkClipboardPort confirms a clipboard-capable tool is reachable. On
// Linux the host clipboard library shells out to xclip/xsel/wl-copy; any one
// of them being present in PATH is sufficient.
func checkClipboardPort() Check {
	for _, bin := range []string{"wl-copy", "xclip", "xsel"} {
		if _, err := exec.LookPath(bin); err == nil {
			return Check{Name: "clipboard", Pass: true, Message: fmt.Sprintf("backed by %s", bin)}
		}
	}
	return Check{Name: "clipboard", Pass: false, Message: "no clipboard backend (wl-copy/xclip/xsel) found in PATH"}
}

// checkNotificationBackend confirms the desktop notification transport is
// reachable. The "desktop" backend delivers over DBus via busctl.
func checkNotificationBackend(cfg config.NotificationsConfig) Check {
	switch cfg.Backend {
	case "desktop":
		return checkBinary("busctl", "desktop notifications are deliverable")
	case "":
		return Check{Name: "notifications", Pass: false, Message: "notifications enabled but backend is empty"}
	default:
		return Check{Name: "notifications", Pass: false, Message: fmt.Sprintf("unknown notifications backend %q", cfg.Backend)}
	}
}

// checkLLMBackend probes reachability of the configured LLM backend: an HTTP
// GET against the base URL for local/ollama, or presence of an API key for
// gemini (no network probe, since a key can be valid without a local probe
// target).
func checkLLMBackend(cfg config.LLMConfig) Check {
	switch cfg.Backend {
	case "local":
		return checkHTTPReachable("llm.local", cfg.Local.BaseURL)
	case "ollama":
		return checkHTTPReachable("llm.ollama", cfg.Ollama.BaseURL)
	case "gemini":
		if strings.TrimSpace(cfg.Gemini.APIKey) == "" {
			return Check{Name: "llm.gemini", Pass: false, Message: "GEMINI_API_KEY / gemini.api_key is not set"}
		}
		return Check{Name: "llm.gemini", Pass: true, Message: "API key configured"}
	default:
		return Check{Name: "llm", Pass: false, Message: fmt.Sprintf("unknown llm backend %q", cfg.Backend)}
	}
}

// checkHTTPReachable performs a best-effort GET against base, tolerating any
// HTTP status as evidence the server is accepting connections.
func checkHTTPReachable(name, base string) Check {
	base = strings.TrimSpace(base)
	if base == "" {
		return Check{Name: name, Pass: false, Message: "base_url is empty"}
	}

	client := http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, base, nil)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("invalid base_url: %v", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	return Check{Name: name, Pass: true, Message: fmt.Sprintf("reachable at %s (HTTP %d)", base, resp.StatusCode)}
}

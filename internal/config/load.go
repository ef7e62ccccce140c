package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, applies environment overrides, and validates
// the runtime configuration. explicitPath, when non-empty, takes precedence
// over V2M_CONFIG and the XDG default.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	warnings := make([]Warning, 0)

	content, err := os.ReadFile(resolvedPath)
	exists := true
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
		}
		exists = false
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	}

	cfg := base
	if exists {
		parsed, parseWarnings, err := Parse(string(content), base)
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
		cfg = parsed
		warnings = append(warnings, parseWarnings...)
	}

	cfg, envWarnings := ApplyEnv(cfg, os.Environ())
	warnings = append(warnings, envWarnings...)

	validateWarnings, err := Validate(cfg)
	if err != nil {
		return Loaded{}, fmt.Errorf("validate config %q: %w", resolvedPath, err)
	}
	warnings = append(warnings, validateWarnings...)

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   exists,
	}, nil
}

// ApplyEnv overlays recognized V2M_* / GEMINI_API_KEY environment variables
// onto cfg, giving them precedence over the TOML file but not over explicit
// CLI flags (applied afterward by internal/app).
func ApplyEnv(cfg Config, environ []string) (Config, []Warning) {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			env[parts[0]] = parts[1]
		}
	}

	warnings := make([]Warning, 0)

	if v, ok := env["V2M_HOST"]; ok && v != "" {
		cfg.Host = v
	}
	if v, ok := env["V2M_PORT"]; ok && v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			cfg.Port = port
		} else {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("ignoring invalid V2M_PORT=%q", v)})
		}
	}
	if v, ok := env["V2M_MODEL"]; ok && v != "" {
		cfg.Transcription.Whisper.Model = v
	}
	if v, ok := env["V2M_DEVICE"]; ok && v != "" {
		cfg.Transcription.Whisper.Device = v
	}
	if v, ok := env["V2M_COMPUTE_TYPE"]; ok && v != "" {
		cfg.Transcription.Whisper.ComputeType = v
	}
	if v, ok := env["V2M_LAZY_LOAD"]; ok && v != "" {
		cfg.Transcription.Whisper.LazyLoad = strings.EqualFold(v, "true") || v == "1"
	}
	if v, ok := env["GEMINI_API_KEY"]; ok && v != "" {
		cfg.LLM.Gemini.APIKey = v
	}

	return cfg, warnings
}

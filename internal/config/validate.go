package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("host must not be empty")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port must be in (0, 65535]")
	}
	if strings.TrimSpace(cfg.Transcription.Whisper.Model) == "" {
		return nil, fmt.Errorf("transcription.whisper.model must not be empty")
	}
	device := strings.ToLower(strings.TrimSpace(cfg.Transcription.Whisper.Device))
	if device != "accelerator" && device != "cpu" {
		return nil, fmt.Errorf("transcription.whisper.device must be one of: accelerator, cpu")
	}
	if cfg.Transcription.Whisper.KeepWarmSeconds < 0 {
		return nil, fmt.Errorf("transcription.whisper.keep_warm_seconds must be >= 0")
	}
	vad := cfg.Transcription.Whisper.VAD
	if vad.Threshold <= 0 || vad.Threshold > 1 {
		return nil, fmt.Errorf("transcription.whisper.vad_parameters.threshold must be in (0, 1]")
	}
	if vad.SilenceDurationMS <= 0 {
		return nil, fmt.Errorf("transcription.whisper.vad_parameters.silence_duration_ms must be > 0")
	}
	if vad.MinSpeechDurationMS < 0 {
		return nil, fmt.Errorf("transcription.whisper.vad_parameters.min_speech_duration_ms must be >= 0")
	}
	if vad.PreRollMS < 0 {
		return nil, fmt.Errorf("transcription.whisper.vad_parameters.pre_roll_ms must be >= 0")
	}

	if strings.TrimSpace(cfg.Transcription.Transcoder.Binary) == "" {
		return nil, fmt.Errorf("transcription.transcoder.binary must not be empty")
	}
	if _, err := ParseExtraArgs(cfg.Transcription.Transcoder.ExtraArgs); err != nil {
		return nil, fmt.Errorf("transcription.transcoder.extra_args: %w", err)
	}
	if cfg.Transcription.Transcoder.AudioTimeoutS <= 0 {
		return nil, fmt.Errorf("transcription.transcoder.audio_timeout_s must be > 0")
	}
	if cfg.Transcription.Transcoder.VideoTimeoutS <= 0 {
		return nil, fmt.Errorf("transcription.transcoder.video_timeout_s must be > 0")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.LLM.Backend))
	switch backend {
	case "local":
		if strings.TrimSpace(cfg.LLM.Local.BaseURL) == "" {
			return nil, fmt.Errorf("llm.local.base_url must not be empty when llm.backend=local")
		}
	case "ollama":
		if strings.TrimSpace(cfg.LLM.Ollama.BaseURL) == "" {
			return nil, fmt.Errorf("llm.ollama.base_url must not be empty when llm.backend=ollama")
		}
	case "gemini":
		if strings.TrimSpace(cfg.LLM.Gemini.APIKey) == "" {
			warnings = append(warnings, Warning{Message: "llm.gemini.api_key is empty; set GEMINI_API_KEY or llm.gemini.api_key before using /llm endpoints"})
		}
	default:
		return nil, fmt.Errorf("llm.backend must be one of: local, ollama, gemini")
	}

	if cfg.Notifications.Enable && strings.TrimSpace(cfg.Notifications.Backend) == "" {
		return nil, fmt.Errorf("notifications.backend must not be empty when notifications.enable=true")
	}

	if cfg.Logging.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("logging.max_size_mb must be > 0")
	}
	if cfg.Logging.MaxBackups < 0 {
		return nil, fmt.Errorf("logging.max_backups must be >= 0")
	}
	if cfg.Logging.MaxAgeDays < 0 {
		return nil, fmt.Errorf("logging.max_age_days must be >= 0")
	}

	return warnings, nil
}

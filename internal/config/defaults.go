package config

import "path/filepath"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	stateDir := defaultStateDir()

	return Config{
		Host: "127.0.0.1",
		Port: 8765,
		Paths: PathsConfig{
			ModelDir:          filepath.Join(stateDir, "models"),
			RecordingFlagFile: filepath.Join(stateDir, "recording.flag"),
			PIDFile:           filepath.Join(stateDir, "v2mdd.pid"),
			SaveRecordingsDir: "",
		},
		Transcription: TranscriptionConfig{
			Transcoder: TranscoderConfig{
				Binary:        "ffmpeg",
				ExtraArgs:     "",
				AudioTimeoutS: 120,
				VideoTimeoutS: 300,
			},
			Whisper: WhisperConfig{
				Model:           "base.en",
				Device:          "accelerator",
				ComputeType:     "float16",
				Language:        "en",
				KeepWarmSeconds: 120,
				LazyLoad:        true,
				VAD: VADParameters{
					Threshold:           0.6,
					SilenceDurationMS:   800,
					MinSpeechDurationMS: 500,
					PreRollMS:           300,
				},
			},
		},
		LLM: LLMConfig{
			Backend: "local",
			Local: LocalLLMConfig{
				BaseURL: "http://127.0.0.1:11434/v1",
				Model:   "local-model",
			},
			Ollama: OllamaLLMConfig{
				BaseURL: "http://127.0.0.1:11434",
				Model:   "llama3.1",
			},
			Gemini: GeminiLLMConfig{
				Model: "gemini-1.5-flash",
			},
		},
		Notifications: NotificationsConfig{
			Enable:  true,
			Backend: "desktop",
		},
		Clipboard: ClipboardConfig{
			Enable: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       filepath.Join(stateDir, "v2mdd.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

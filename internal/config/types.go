// Package config resolves, parses, validates, and defaults v2md configuration.
package config

// Config is the fully materialized runtime configuration used by the daemon.
type Config struct {
	Host          string              `toml:"host"`
	Port          int                 `toml:"port"`
	Paths         PathsConfig         `toml:"paths"`
	Transcription TranscriptionConfig `toml:"transcription"`
	LLM           LLMConfig           `toml:"llm"`
	Notifications NotificationsConfig `toml:"notifications"`
	Clipboard     ClipboardConfig     `toml:"clipboard"`
	Logging       LoggingConfig       `toml:"logging"`
}

// PathsConfig locates on-disk state shared across restarts.
type PathsConfig struct {
	ModelDir          string `toml:"model_dir"`
	RecordingFlagFile string `toml:"recording_flag_file"`
	PIDFile           string `toml:"pid_file"`
	SaveRecordingsDir string `toml:"save_recordings_dir"`
}

// TranscriptionConfig controls the ASR pipeline.
type TranscriptionConfig struct {
	Whisper    WhisperConfig    `toml:"whisper"`
	Transcoder TranscoderConfig `toml:"transcoder"`
}

// TranscoderConfig controls the external decode subprocess used by
// FileTranscriber for inputs the capture path never produces.
type TranscoderConfig struct {
	Binary        string `toml:"binary"`
	ExtraArgs     string `toml:"extra_args"`
	AudioTimeoutS int    `toml:"audio_timeout_s"`
	VideoTimeoutS int    `toml:"video_timeout_s"`
}

// WhisperConfig controls the embedded recognizer.
type WhisperConfig struct {
	Model           string        `toml:"model"`
	Device          string        `toml:"device"` // "accelerator" or "cpu"
	ComputeType     string        `toml:"compute_type"`
	Language        string        `toml:"language"`
	KeepWarmSeconds int           `toml:"keep_warm_seconds"`
	LazyLoad        bool          `toml:"lazy_load"`
	VAD             VADParameters `toml:"vad_parameters"`
}

// VADParameters tunes the streaming segmentation state machine.
type VADParameters struct {
	Threshold           float64 `toml:"threshold"`
	SilenceDurationMS   int     `toml:"silence_duration_ms"`
	MinSpeechDurationMS int     `toml:"min_speech_duration_ms"`
	PreRollMS           int     `toml:"pre_roll_ms"`
}

// LLMConfig selects and configures one of the closed LLM backends.
type LLMConfig struct {
	Backend string          `toml:"backend"` // "local", "ollama", "gemini"
	Local   LocalLLMConfig  `toml:"local"`
	Ollama  OllamaLLMConfig `toml:"ollama"`
	Gemini  GeminiLLMConfig `toml:"gemini"`
}

// LocalLLMConfig targets an OpenAI-compatible local server.
type LocalLLMConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

// OllamaLLMConfig targets a local Ollama daemon.
type OllamaLLMConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// GeminiLLMConfig targets the Gemini API.
type GeminiLLMConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// NotificationsConfig controls the desktop notifier port.
type NotificationsConfig struct {
	Enable  bool   `toml:"enable"`
	Backend string `toml:"backend"`
}

// ClipboardConfig controls the clipboard port.
type ClipboardConfig struct {
	Enable bool `toml:"enable"`
}

// LoggingConfig controls the logging runtime.
type LoggingConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

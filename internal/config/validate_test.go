package config

import "testing"

func TestValidate_DefaultsPass(t *testing.T) {
	if _, err := Validate(Default()); err != nil {
		t.Fatalf("Validate(Default()) error: %v", err)
	}
}

func TestValidate_RejectsBadDevice(t *testing.T) {
	cfg := Default()
	cfg.Transcription.Whisper.Device = "quantum"
	if _, err := Validate(cfg); err == nil {
		t.Fatal("expected error for invalid device")
	}
}

func TestValidate_RejectsUnknownLLMBackend(t *testing.T) {
	cfg := Default()
	cfg.LLM.Backend = "bogus"
	if _, err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown llm backend")
	}
}

func TestValidate_GeminiMissingKeyWarnsNotErrors(t *testing.T) {
	cfg := Default()
	cfg.LLM.Backend = "gemini"
	cfg.LLM.Gemini.APIKey = ""
	warnings, err := Validate(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) == 0 {
		t.Fatal("expected a warning about missing gemini api key")
	}
}

func TestValidate_RejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Port = 0
	if _, err := Validate(cfg); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Parse decodes TOML content onto base, so that keys absent from content
// retain base's values. Unknown keys are reported as warnings rather than
// errors, matching the teacher's tolerant-parse behavior.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg := base

	meta, err := toml.Decode(content, &cfg)
	if err != nil {
		return Config{}, nil, fmt.Errorf("decode toml: %w", err)
	}

	warnings := make([]Warning, 0, len(meta.Undecoded()))
	for _, key := range meta.Undecoded() {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("unknown config key %q ignored", key.String()),
		})
	}

	return cfg, warnings, nil
}

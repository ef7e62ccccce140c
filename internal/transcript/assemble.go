// Package transcript assembles recognized ASR segments into one finished
// string and applies casing rules appropriate to the session's spoken
// language (spec.md §6 carries a `language` code on every recording and
// file-transcription call; casing conventions are not universal across it).
package transcript

import "strings"

// Options controls transcript assembly formatting behavior.
type Options struct {
	TrailingSpace       bool
	CapitalizeSentences bool
	// Language is the BCP-47-ish code passed to PersistentModelWorker for
	// this segment (e.g. "en", "es"). Empty defaults to the English profile,
	// matching config.Default()'s "base.en" model.
	Language string
}

// Assemble joins final ASR segments and applies configured normalization.
func Assemble(finalSegments []string, opts Options) string {
	if len(finalSegments) == 0 {
		return ""
	}

	joined := strings.Join(finalSegments, " ")
	normalized := strings.Join(strings.Fields(joined), " ")
	if normalized == "" {
		return ""
	}

	if opts.CapitalizeSentences {
		normalized = capitalizeSentences(normalized, profileFor(opts.Language))
	}

	if opts.TrailingSpace {
		return normalized + " "
	}
	return normalized
}

func capitalizeSentences(text string, profile languageProfile) string {
	text = capitalizeSentenceStarts(text, profile)
	if !profile.capitalizeStandalonePronoun {
		return text
	}
	text = profile.pronounContractionPattern.ReplaceAllStringFunc(text, func(match string) string {
		return "I" + match[1:]
	})
	return capitalizeStandalonePronounI(text, profile)
}

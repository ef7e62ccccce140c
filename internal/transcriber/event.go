package transcriber

import "time"

// Event is a transcription_update emitted to daemon subscribers.
type Event struct {
	Final bool
	Text  string
	Time  time.Time
}

// EventFunc receives transcription events as they are produced. It must not
// block the transcriber's tick loop for long.
type EventFunc func(Event)

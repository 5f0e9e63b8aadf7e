package recognize

import (
	"context"
)

// Result captures recognizer output.
type Result struct {
	Text       string
	Confidence float64
}

// Recognizer abstracts speech-to-text backends. path points at a
// materialized audio file; language is a BCP-47 tag such as "en-US".
// Failures are classified via internal/outcome; unexpected errors carry
// their original message.
type Recognizer interface {
	Transcribe(ctx context.Context, path string, language string) (Result, error)
}

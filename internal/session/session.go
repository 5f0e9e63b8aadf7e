package session

import (
	"time"

	"github.com/openscribe/scribed/internal/outcome"
)

// Column identifies an independent input lane of the session. The two
// lanes share settings but run their own lifecycles.
type Column string

const (
	ColumnMicrophone Column = "microphone"
	ColumnFile       Column = "file"
)

// Settings are the user-adjustable transcription options.
type Settings struct {
	Language      string
	NoiseAdjust   bool
	ListenTimeout time.Duration
}

// Result is the immutable outcome of one transcription attempt. A nil
// Failure means success.
type Result struct {
	AttemptID string
	Language  string
	Text      string
	Failure   *outcome.Failure
	At        time.Time
}

func (r Result) OK() bool { return r.Failure == nil }

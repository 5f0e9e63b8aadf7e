package protocol

import "time"

// Transcript announces a completed transcription attempt on the bus.
type Transcript struct {
	SessionID string    `json:"session_id"`
	Source    string    `json:"source"` // microphone or file
	AttemptID string    `json:"attempt_id"`
	Language  string    `json:"language"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const SubjectTranscriptDone = "scribed.transcript.done"

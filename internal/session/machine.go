package session

// State of one column's lifecycle. The microphone lane moves through the
// full sequence; the file lane only uses Idle, Recognizing, and Done.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateNoiseAdjusting
	StateListening
	StateRecognizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateNoiseAdjusting:
		return "noise_adjusting"
	case StateListening:
		return "listening"
	case StateRecognizing:
		return "recognizing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

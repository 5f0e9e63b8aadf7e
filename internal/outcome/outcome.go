package outcome

import (
	"errors"
	"fmt"
)

// Kind is the closed classification of transcription failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindTimeout
	KindUnintelligible
	KindServiceUnavailable
	KindInvalidInput
	KindDeviceError
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUnintelligible:
		return "unintelligible"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindInvalidInput:
		return "invalid_input"
	case KindDeviceError:
		return "device_error"
	default:
		return "unknown"
	}
}

// Failure is a classified transcription error. Message is user-visible.
type Failure struct {
	Kind    Kind
	Message string
}

func (f *Failure) Error() string { return f.Message }

// Failuref builds a classified failure with a formatted message.
func Failuref(kind Kind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. An already classified error keeps its
// original kind so callers closer to the cause win.
func Wrap(kind Kind, err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: kind, Message: err.Error()}
}

// Classify converts any error into a Failure. Unclassified errors map to
// KindUnknown with the original message preserved.
func Classify(err error) *Failure {
	return Wrap(KindUnknown, err)
}

// KindOf reports the classification of err.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

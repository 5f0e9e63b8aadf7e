package recognize

import (
	"context"
	"fmt"
	"path/filepath"
)

type mockRecognizer struct {
	text string
}

// NewMockRecognizer returns canned text, or a synthetic transcript naming
// the input when text is empty.
func NewMockRecognizer(text string) Recognizer {
	return &mockRecognizer{text: text}
}

func (m *mockRecognizer) Transcribe(_ context.Context, path string, language string) (Result, error) {
	if m.text != "" {
		return Result{Text: m.text, Confidence: 1}, nil
	}
	return Result{
		Text:       fmt.Sprintf("[mock transcript of %s in %s]", filepath.Base(path), language),
		Confidence: 0,
	}, nil
}

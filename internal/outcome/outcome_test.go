package outcome

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfClassified(t *testing.T) {
	err := Failuref(KindTimeout, "no speech detected within %ds", 5)
	if KindOf(err) != KindTimeout {
		t.Fatalf("expected timeout kind, got %v", KindOf(err))
	}
	wrapped := fmt.Errorf("listen: %w", err)
	if KindOf(wrapped) != KindTimeout {
		t.Fatalf("expected kind to survive wrapping, got %v", KindOf(wrapped))
	}
}

func TestClassifyUnknownPreservesMessage(t *testing.T) {
	err := errors.New("connection reset")
	f := Classify(err)
	if f.Kind != KindUnknown {
		t.Fatalf("expected unknown kind, got %v", f.Kind)
	}
	if f.Message != "connection reset" {
		t.Fatalf("expected original message preserved, got %q", f.Message)
	}
}

func TestWrapKeepsEarlierClassification(t *testing.T) {
	inner := Failuref(KindUnintelligible, "could not understand audio")
	f := Wrap(KindServiceUnavailable, fmt.Errorf("recognize: %w", inner))
	if f.Kind != KindUnintelligible {
		t.Fatalf("expected inner kind kept, got %v", f.Kind)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(KindTimeout, nil) != nil {
		t.Fatal("expected nil failure for nil error")
	}
}

func TestKindString(t *testing.T) {
	if KindServiceUnavailable.String() != "service_unavailable" {
		t.Fatalf("unexpected string: %s", KindServiceUnavailable)
	}
	if Kind(99).String() != "unknown" {
		t.Fatalf("unexpected string for out-of-range kind")
	}
}

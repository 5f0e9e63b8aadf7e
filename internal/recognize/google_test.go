package recognize

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openscribe/scribed/internal/config"
	"github.com/openscribe/scribed/internal/outcome"
)

func writeAudioFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write audio file: %v", err)
	}
	return path
}

func googleConfig(endpoint string) config.RecognizerConfig {
	return config.RecognizerConfig{
		Mode:                  "google",
		Endpoint:              endpoint,
		APIKey:                "test-key",
		RequestTimeoutSeconds: 5,
	}
}

func TestGoogleTranscribeSuccess(t *testing.T) {
	var gotLang string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.URL.Query().Get("lang")
		w.Write([]byte(`{"result":[]}` + "\n" +
			`{"result":[{"alternative":[{"transcript":"hello world","confidence":0.92}],"final":true}],"result_index":0}` + "\n"))
	}))
	defer server.Close()

	rec := NewGoogleRecognizer(googleConfig(server.URL), 16000)
	path := writeAudioFile(t, "hello.wav", []byte("RIFFfakewav"))
	result, err := rec.Transcribe(context.Background(), path, "en-US")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if result.Text != "hello world" {
		t.Fatalf("unexpected text: %q", result.Text)
	}
	if result.Confidence != 0.92 {
		t.Fatalf("unexpected confidence: %f", result.Confidence)
	}
	if gotLang != "en-US" {
		t.Fatalf("expected language tag passed through, got %q", gotLang)
	}
}

func TestGoogleTranscribePicksBestAlternative(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"result":[{"alternative":[{"transcript":"low","confidence":0.3},{"transcript":"high","confidence":0.9}],"final":true}]}` + "\n"))
	}))
	defer server.Close()

	rec := NewGoogleRecognizer(googleConfig(server.URL), 16000)
	path := writeAudioFile(t, "clip.wav", []byte("RIFFfakewav"))
	result, err := rec.Transcribe(context.Background(), path, "en-GB")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if result.Text != "high" {
		t.Fatalf("expected highest-confidence alternative, got %q", result.Text)
	}
}

func TestGoogleTranscribeUnintelligible(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"result":[]}` + "\n"))
	}))
	defer server.Close()

	rec := NewGoogleRecognizer(googleConfig(server.URL), 16000)
	path := writeAudioFile(t, "noise.wav", []byte("RIFFfakewav"))
	_, err := rec.Transcribe(context.Background(), path, "en-US")
	if outcome.KindOf(err) != outcome.KindUnintelligible {
		t.Fatalf("expected unintelligible kind, got %v (%v)", outcome.KindOf(err), err)
	}
	if !strings.Contains(err.Error(), "could not understand audio") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestGoogleTranscribeServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	rec := NewGoogleRecognizer(googleConfig(server.URL), 16000)
	path := writeAudioFile(t, "clip.wav", []byte("RIFFfakewav"))
	_, err := rec.Transcribe(context.Background(), path, "en-US")
	if outcome.KindOf(err) != outcome.KindServiceUnavailable {
		t.Fatalf("expected service unavailable kind, got %v (%v)", outcome.KindOf(err), err)
	}
	if !strings.Contains(err.Error(), "backend exploded") {
		t.Fatalf("expected underlying message preserved, got %v", err)
	}
}

func TestGoogleTranscribeNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := server.URL
	server.Close() // connection refused from here on

	rec := NewGoogleRecognizer(googleConfig(endpoint), 16000)
	path := writeAudioFile(t, "clip.wav", []byte("RIFFfakewav"))
	_, err := rec.Transcribe(context.Background(), path, "en-US")
	if outcome.KindOf(err) != outcome.KindServiceUnavailable {
		t.Fatalf("expected service unavailable kind, got %v (%v)", outcome.KindOf(err), err)
	}
}

func TestGoogleTranscribeEmptyFile(t *testing.T) {
	rec := NewGoogleRecognizer(googleConfig("http://localhost:0"), 16000)
	path := writeAudioFile(t, "empty.wav", nil)
	_, err := rec.Transcribe(context.Background(), path, "en-US")
	if outcome.KindOf(err) != outcome.KindInvalidInput {
		t.Fatalf("expected invalid input kind, got %v (%v)", outcome.KindOf(err), err)
	}
}

func TestMockRecognizerCannedText(t *testing.T) {
	rec := NewMockRecognizer("hello world")
	result, err := rec.Transcribe(context.Background(), "/tmp/whatever.wav", "en-US")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if result.Text != "hello world" {
		t.Fatalf("unexpected text: %q", result.Text)
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openscribe/scribed/internal/capture"
	"github.com/openscribe/scribed/internal/config"
	"github.com/openscribe/scribed/internal/outcome"
	"github.com/openscribe/scribed/internal/recognize"
	"github.com/openscribe/scribed/internal/session"
	"github.com/spf13/afero"
)

type stubRecognizer struct {
	text string
	err  error
}

func (s *stubRecognizer) Transcribe(_ context.Context, _, _ string) (recognize.Result, error) {
	if s.err != nil {
		return recognize.Result{}, s.err
	}
	return recognize.Result{Text: s.text, Confidence: 0.9}, nil
}

func testConfig() config.SessionConfig {
	return config.SessionConfig{
		Language:             "en-US",
		Languages:            []string{"en-US", "es-ES", "fr-FR"},
		NoiseAdjust:          true,
		ListenTimeoutSeconds: 5,
		AllowedExtensions:    []string{"wav", "mp3", "flac"},
		DownloadNaming:       config.NamingTimestamp,
		CalibrationMS:        100,
		MaxUploadBytes:       1 << 20,
	}
}

func newTestServer(t *testing.T, rec recognize.Recognizer, src capture.Source) (*httptest.Server, *session.Controller) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := testConfig()
	var listener *capture.Listener
	if src != nil {
		listener = capture.NewListener(src, config.CaptureConfig{
			Mode: "mock", SampleRate: 16000, Channels: 1, FrameDurationMS: 20,
		}, logger)
	}
	ctrl := session.New(cfg, rec, listener, afero.NewMemMapFs(), logger)
	mux := http.NewServeMux()
	NewServer(ctrl, cfg, logger).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, ctrl
}

func wavUpload(t *testing.T) []byte {
	t.Helper()
	pcm := make([]byte, 16000*2)
	for i := 0; i < len(pcm)/2; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(i%4000)))
	}
	path := filepath.Join(t.TempDir(), "upload.wav")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	if err := capture.EncodeWAV(file, capture.Clip{PCM: pcm, SampleRate: 16000, Channels: 1}); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	return data
}

func multipartUpload(t *testing.T, url, filename string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	resp, err := http.Post(url+"/v1/transcriptions", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("post upload: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{}, nil)

	resp, err := http.Get(srv.URL + "/v1/settings")
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	var got settingsPayload
	decodeJSON(t, resp, &got)
	if got.Language != "en-US" || !got.NoiseAdjust || got.ListenTimeoutSeconds != 5 {
		t.Fatalf("unexpected defaults: %+v", got)
	}

	update := settingsPayload{Language: "es-ES", NoiseAdjust: false, ListenTimeoutSeconds: 8}
	body, _ := json.Marshal(update)
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/v1/settings", bytes.NewReader(body))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put settings: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	decodeJSON(t, resp, &got)
	if got != update {
		t.Fatalf("settings not applied: %+v", got)
	}
}

func TestSettingsRejectsUnknownLanguage(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{}, nil)

	body, _ := json.Marshal(settingsPayload{Language: "xx-XX", ListenTimeoutSeconds: 5})
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/v1/settings", bytes.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put settings: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var got errorPayload
	decodeJSON(t, resp, &got)
	if got.Kind != "invalid_input" {
		t.Fatalf("unexpected error payload: %+v", got)
	}
}

func TestTranscriptionUpload(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{text: "hello world"}, nil)

	resp := multipartUpload(t, srv.URL, "clip.wav", wavUpload(t))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got resultPayload
	decodeJSON(t, resp, &got)
	if got.Text != "hello world" || got.Language != "en-US" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestTranscriptionRejectsExtension(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{text: "never"}, nil)

	resp := multipartUpload(t, srv.URL, "notes.txt", []byte("plain text"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var got resultPayload
	decodeJSON(t, resp, &got)
	if got.Kind != "invalid_input" || !strings.Contains(got.Error, "unsupported audio format") {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestTranscriptionFailureStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"unintelligible", outcome.Failuref(outcome.KindUnintelligible, "could not understand audio"), http.StatusUnprocessableEntity},
		{"service unavailable", outcome.Failuref(outcome.KindServiceUnavailable, "connection reset"), http.StatusBadGateway},
		{"unknown", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &stubRecognizer{err: tc.err}, nil)
			resp := multipartUpload(t, srv.URL, "clip.wav", wavUpload(t))
			defer resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestTranscriptionRequiresAudioField(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("note", "no audio here"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	resp, err := http.Post(srv.URL+"/v1/transcriptions", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDownloadAfterUpload(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{text: "hello world"}, nil)

	resp, err := http.Get(srv.URL + "/v1/result/download?source=file")
	if err != nil {
		t.Fatalf("get download: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before any result, got %d", resp.StatusCode)
	}

	multipartUpload(t, srv.URL, "clip.wav", wavUpload(t)).Body.Close()

	resp, err = http.Get(srv.URL + "/v1/result/download?source=file")
	if err != nil {
		t.Fatalf("get download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != session.DownloadMIME {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "file_text_") {
		t.Fatalf("unexpected disposition: %s", cd)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("download must match transcript, got %q", data)
	}
}

func TestResultRejectsUnknownSource(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{}, nil)

	resp, err := http.Get(srv.URL + "/v1/result?source=tape")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRecordStartBusyAndStop(t *testing.T) {
	silence := make([]capture.Frame, 5000)
	for i := range silence {
		pcm := make([]byte, 640)
		silence[i] = capture.Frame{PCM: pcm}
	}
	src := &capture.MockSource{Frames: silence, Delay: time.Millisecond}
	srv, ctrl := newTestServer(t, &stubRecognizer{text: "never"}, src)

	resp, err := http.Post(srv.URL+"/v1/record/start", "application/json", nil)
	if err != nil {
		t.Fatalf("record start: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/v1/record/start", "application/json", nil)
	if err != nil {
		t.Fatalf("second record start: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while recording, got %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/v1/record/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("record stop: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.State(session.ColumnMicrophone) == session.StateIdle {
			break
		}
		time.Sleep(time.Millisecond)
	}

	resp, err = http.Get(srv.URL + "/v1/result?source=microphone")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	var got statusPayload
	decodeJSON(t, resp, &got)
	if got.State != "idle" || got.Result != nil {
		t.Fatalf("cancelled cycle must leave no result, got %+v", got)
	}
}

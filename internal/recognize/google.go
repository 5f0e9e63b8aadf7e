package recognize

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openscribe/scribed/internal/config"
	"github.com/openscribe/scribed/internal/outcome"
)

// googleRecognizer calls the Google web speech API. Responses arrive as
// newline-framed JSON objects; the first object with a non-empty result
// carries the alternatives.
type googleRecognizer struct {
	endpoint   string
	apiKey     string
	sampleRate int
	client     *http.Client
}

type googleResponse struct {
	Result []struct {
		Alternative []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternative"`
		Final bool `json:"final"`
	} `json:"result"`
}

func NewGoogleRecognizer(cfg config.RecognizerConfig, sampleRate int) Recognizer {
	return &googleRecognizer{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		sampleRate: sampleRate,
		client: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
	}
}

func (g *googleRecognizer) Transcribe(ctx context.Context, path string, language string) (Result, error) {
	audio, err := os.ReadFile(path)
	if err != nil {
		return Result{}, outcome.Failuref(outcome.KindInvalidInput, "read audio: %v", err)
	}
	if len(audio) == 0 {
		return Result{}, outcome.Failuref(outcome.KindInvalidInput, "audio buffer is empty")
	}

	query := url.Values{}
	query.Set("client", "chromium")
	query.Set("lang", language)
	query.Set("key", g.apiKey)
	query.Set("pFilter", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.endpoint+"?"+query.Encode(), bytes.NewReader(audio))
	if err != nil {
		return Result{}, outcome.Failuref(outcome.KindUnknown, "build recognition request: %v", err)
	}
	req.Header.Set("Content-Type", audioContentType(path, g.sampleRate))

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, outcome.Failuref(outcome.KindServiceUnavailable, "recognition request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, outcome.Failuref(outcome.KindServiceUnavailable,
			"recognition service returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return parseGoogleResponse(resp.Body)
}

func parseGoogleResponse(body io.Reader) (Result, error) {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var decoded googleResponse
		if err := json.Unmarshal(line, &decoded); err != nil {
			return Result{}, outcome.Failuref(outcome.KindUnknown, "decode recognition response: %v", err)
		}
		for _, result := range decoded.Result {
			if len(result.Alternative) == 0 {
				continue
			}
			best := result.Alternative[0]
			for _, alt := range result.Alternative[1:] {
				if alt.Confidence > best.Confidence {
					best = alt
				}
			}
			if best.Transcript != "" {
				return Result{Text: best.Transcript, Confidence: best.Confidence}, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Result{}, outcome.Failuref(outcome.KindServiceUnavailable, "read recognition response: %v", err)
	}
	return Result{}, outcome.Failuref(outcome.KindUnintelligible, "could not understand audio")
}

func audioContentType(path string, sampleRate int) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		return fmt.Sprintf("audio/x-flac; rate=%d", sampleRate)
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	default:
		return fmt.Sprintf("audio/l16; rate=%d", sampleRate)
	}
}

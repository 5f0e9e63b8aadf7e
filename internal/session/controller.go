package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openscribe/scribed/internal/artifact"
	"github.com/openscribe/scribed/internal/capture"
	"github.com/openscribe/scribed/internal/config"
	"github.com/openscribe/scribed/internal/outcome"
	"github.com/openscribe/scribed/internal/recognize"
	"github.com/spf13/afero"
)

// ErrBusy rejects a new attempt while the column's prior attempt has not
// reached a terminal state.
var ErrBusy = errors.New("a transcription attempt is already in progress")

// Controller owns one user session: shared settings plus an independent
// lifecycle per input column. Exactly one of success, failure, or
// cancelled-without-result terminates each activation.
type Controller struct {
	id       string
	cfg      config.SessionConfig
	rec      recognize.Recognizer
	listener *capture.Listener
	fs       afero.Fs
	logger   *slog.Logger
	announce func(Column, Result)
	clock    func() time.Time

	mu       sync.Mutex
	settings Settings
	columns  map[Column]*columnState
}

type columnState struct {
	state    State
	inflight bool
	cancel   context.CancelFunc
	result   *Result
}

func New(cfg config.SessionConfig, rec recognize.Recognizer, listener *capture.Listener, fs afero.Fs, logger *slog.Logger) *Controller {
	return &Controller{
		id:       uuid.NewString(),
		cfg:      cfg,
		rec:      rec,
		listener: listener,
		fs:       fs,
		logger:   logger.With(slog.String("component", "session")),
		clock:    time.Now,
		settings: Settings{
			Language:      cfg.Language,
			NoiseAdjust:   cfg.NoiseAdjust,
			ListenTimeout: time.Duration(cfg.ListenTimeoutSeconds) * time.Second,
		},
		columns: map[Column]*columnState{
			ColumnMicrophone: {},
			ColumnFile:       {},
		},
	}
}

func (c *Controller) ID() string { return c.id }

// SetAnnounce installs a hook invoked after each successful attempt.
func (c *Controller) SetAnnounce(fn func(Column, Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.announce = fn
}

func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *Controller) UpdateSettings(s Settings) error {
	if !containsFold(c.cfg.Languages, s.Language) {
		return outcome.Failuref(outcome.KindInvalidInput,
			"language %q is not supported; supported languages: %s",
			s.Language, strings.Join(c.cfg.Languages, ", "))
	}
	if s.ListenTimeout < time.Second || s.ListenTimeout > 10*time.Second {
		return outcome.Failuref(outcome.KindInvalidInput,
			"listen timeout must be between 1s and 10s")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
	return nil
}

func (c *Controller) State(col Column) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.columns[col].state
}

// Result returns the current result for col, if any.
func (c *Controller) Result(col Column) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.columns[col]
	if st.result == nil {
		return Result{}, false
	}
	return *st.result, true
}

// Download returns the transcript artifact for col. Only successful
// results produce a download; the sink never mutates session state.
func (c *Controller) Download(col Column) (string, []byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.columns[col]
	if st.result == nil || !st.result.OK() {
		return "", nil, false
	}
	return DownloadName(col, c.cfg.DownloadNaming, st.result.At), []byte(st.result.Text), true
}

// StartRecording runs one full microphone cycle: calibrate when enabled,
// listen until speech ends or the timeout fires, recognize, store the
// result. Blocks until the cycle reaches a terminal state. A cancelled
// cycle returns context.Canceled and stores no result.
func (c *Controller) StartRecording(ctx context.Context) (Result, error) {
	if c.listener == nil {
		return Result{}, errors.New("microphone capture is not configured")
	}
	ctx, settings, err := c.begin(ctx, ColumnMicrophone, StateRecording)
	if err != nil {
		return Result{}, err
	}
	res := c.record(ctx, settings)
	c.finish(ColumnMicrophone, res)
	if res == nil {
		return Result{}, context.Canceled
	}
	return *res, nil
}

// StartRecordingAsync claims the microphone column and runs the cycle in
// the background. Returns ErrBusy when an attempt is already in flight;
// the outcome is observable through State and Result.
func (c *Controller) StartRecordingAsync() error {
	if c.listener == nil {
		return errors.New("microphone capture is not configured")
	}
	ctx, settings, err := c.begin(context.Background(), ColumnMicrophone, StateRecording)
	if err != nil {
		return err
	}
	go func() {
		res := c.record(ctx, settings)
		c.finish(ColumnMicrophone, res)
	}()
	return nil
}

// StopRecording cancels the in-flight microphone capture. Stopping an
// idle column is a no-op.
func (c *Controller) StopRecording() {
	c.mu.Lock()
	cancel := c.columns[ColumnMicrophone].cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// TranscribeFile runs the upload flow: validate the extension, materialize
// a temp artifact, optionally calibrate against the leading audio,
// recognize, and clean up the artifact on every exit path.
func (c *Controller) TranscribeFile(ctx context.Context, filename string, data []byte) (Result, error) {
	ctx, settings, err := c.begin(ctx, ColumnFile, StateRecognizing)
	if err != nil {
		return Result{}, err
	}
	res := c.transcribeFile(ctx, settings, filename, data)
	c.finish(ColumnFile, res)
	if res == nil {
		return Result{}, context.Canceled
	}
	return *res, nil
}

func (c *Controller) record(ctx context.Context, settings Settings) *Result {
	attempt := uuid.NewString()
	clip, err := c.listener.Listen(ctx, capture.ListenOptions{
		Timeout:     settings.ListenTimeout,
		NoiseAdjust: settings.NoiseAdjust,
		Calibration: c.calibration(),
		Notify: func(p capture.Phase) {
			switch p {
			case capture.PhaseCalibrating:
				c.setState(ColumnMicrophone, StateNoiseAdjusting)
			case capture.PhaseListening:
				c.setState(ColumnMicrophone, StateListening)
			}
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Info("recording cancelled", slog.String("attempt_id", attempt))
			return nil
		}
		return c.failure(attempt, settings.Language, err)
	}

	c.setState(ColumnMicrophone, StateRecognizing)
	art, err := artifact.Create(c.fs, "scribed_mic_*.wav", func(f afero.File) error {
		return capture.EncodeWAV(f, clip)
	})
	if err != nil {
		return c.failure(attempt, settings.Language, err)
	}
	defer c.removeArtifact(art)

	// Stop must win over recognition when it lands between capture and
	// the adapter call.
	if ctx.Err() != nil {
		c.logger.Info("recording cancelled", slog.String("attempt_id", attempt))
		return nil
	}
	return c.runRecognizer(ctx, attempt, settings.Language, art.Path())
}

func (c *Controller) transcribeFile(ctx context.Context, settings Settings, filename string, data []byte) *Result {
	attempt := uuid.NewString()
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !containsFold(c.cfg.AllowedExtensions, ext) {
		return c.failure(attempt, settings.Language, outcome.Failuref(outcome.KindInvalidInput,
			"unsupported audio format %q; supported formats: %s",
			ext, strings.Join(c.cfg.AllowedExtensions, ", ")))
	}
	if len(data) == 0 {
		return c.failure(attempt, settings.Language,
			outcome.Failuref(outcome.KindInvalidInput, "uploaded audio is empty"))
	}

	// Calibration consumes the head of the audio, same as the live flow.
	var trimmed *capture.Clip
	if settings.NoiseAdjust && ext == "wav" {
		if clip, err := capture.DecodeWAV(bytes.NewReader(data)); err == nil {
			window := c.calibration()
			floor := capture.NoiseFloor(clip, window)
			c.logger.Debug("file noise floor measured",
				slog.String("attempt_id", attempt), slog.Float64("noise_floor", floor))
			if rest := clip.TrimLeading(window); len(rest.PCM) > 0 {
				trimmed = &rest
			}
		} else {
			c.logger.Warn("wav decode for calibration failed", slogError(err))
		}
	}

	pattern := fmt.Sprintf("scribed_upload_*.%s", ext)
	var art *artifact.Artifact
	var err error
	if trimmed != nil {
		art, err = artifact.Create(c.fs, pattern, func(f afero.File) error {
			return capture.EncodeWAV(f, *trimmed)
		})
	} else {
		art, err = artifact.Write(c.fs, pattern, data)
	}
	if err != nil {
		return c.failure(attempt, settings.Language, err)
	}
	defer c.removeArtifact(art)

	if ctx.Err() != nil {
		return nil
	}
	return c.runRecognizer(ctx, attempt, settings.Language, art.Path())
}

func (c *Controller) runRecognizer(ctx context.Context, attempt, language, path string) *Result {
	result, err := c.rec.Transcribe(ctx, path, language)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return c.failure(attempt, language, err)
	}
	c.logger.Info("transcription succeeded",
		slog.String("attempt_id", attempt), slog.String("language", language))
	return &Result{
		AttemptID: attempt,
		Language:  language,
		Text:      result.Text,
		At:        c.clock().UTC(),
	}
}

// begin claims the column for a new attempt, rejecting overlap.
func (c *Controller) begin(parent context.Context, col Column, initial State) (context.Context, Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.columns[col]
	if st.inflight {
		return nil, Settings{}, ErrBusy
	}
	ctx, cancel := context.WithCancel(parent)
	st.inflight = true
	st.cancel = cancel
	st.state = initial
	return ctx, c.settings, nil
}

// finish records the attempt outcome. A nil result means the attempt was
// cancelled: the previous result stays in place and the column returns to
// Idle.
func (c *Controller) finish(col Column, res *Result) {
	c.mu.Lock()
	st := c.columns[col]
	st.inflight = false
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	switch {
	case res == nil:
		st.state = StateIdle
	case res.OK():
		st.result = res
		st.state = StateDone
	default:
		st.result = res
		st.state = StateIdle
	}
	announce := c.announce
	c.mu.Unlock()

	if res != nil && res.OK() && announce != nil {
		announce(col, *res)
	}
}

func (c *Controller) setState(col Column, s State) {
	c.mu.Lock()
	c.columns[col].state = s
	c.mu.Unlock()
}

func (c *Controller) failure(attempt, language string, err error) *Result {
	f := outcome.Classify(err)
	c.logger.Warn("transcription attempt failed",
		slog.String("attempt_id", attempt),
		slog.String("kind", f.Kind.String()),
		slogError(f))
	return &Result{
		AttemptID: attempt,
		Language:  language,
		Failure:   f,
		At:        c.clock().UTC(),
	}
}

func (c *Controller) removeArtifact(art *artifact.Artifact) {
	if err := art.Remove(); err != nil {
		c.logger.Warn("temp artifact cleanup failed", slogError(err))
	}
}

func (c *Controller) calibration() time.Duration {
	return time.Duration(c.cfg.CalibrationMS) * time.Millisecond
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}

package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/openscribe/scribed/internal/config"
	"github.com/openscribe/scribed/internal/outcome"
)

// Trailing silence that ends an utterance once speech has started.
const pauseWindow = 800 * time.Millisecond

// Phase reports listener progress so callers can track lifecycle state.
type Phase int

const (
	PhaseCalibrating Phase = iota
	PhaseListening
)

// ListenOptions control one capture activation.
type ListenOptions struct {
	Timeout     time.Duration // max wait for speech to start
	NoiseAdjust bool
	Calibration time.Duration
	Notify      func(Phase)
}

// Listener turns a frame stream into a single captured utterance.
type Listener struct {
	src        Source
	sampleRate int
	channels   int
	frameDur   time.Duration
	logger     *slog.Logger
}

func NewListener(src Source, cfg config.CaptureConfig, logger *slog.Logger) *Listener {
	return &Listener{
		src:        src,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		frameDur:   time.Duration(cfg.FrameDurationMS) * time.Millisecond,
		logger:     logger.With(slog.String("component", "listener")),
	}
}

// Listen calibrates against ambient noise when enabled, waits for speech
// to start within opts.Timeout, then collects frames until a trailing
// silence window. Cancellation via ctx aborts capture and returns the
// context error.
func (l *Listener) Listen(ctx context.Context, opts ListenOptions) (Clip, error) {
	frames, errs := l.src.Stream(ctx)

	threshold := defaultEnergyThreshold
	if opts.NoiseAdjust {
		notify(opts, PhaseCalibrating)
		ambient, err := l.collect(ctx, frames, errs, l.framesFor(opts.Calibration))
		if err != nil {
			return Clip{}, err
		}
		threshold = calibrateThreshold(ambient)
		l.logger.Debug("ambient noise calibrated", slog.Float64("threshold", threshold))
	}

	notify(opts, PhaseListening)
	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()

	var pcm []byte
	waiting := true
	for waiting {
		select {
		case <-ctx.Done():
			return Clip{}, ctx.Err()
		case <-deadline.C:
			return Clip{}, outcome.Failuref(outcome.KindTimeout,
				"no speech detected within %s", opts.Timeout)
		case err := <-errs:
			if err != nil {
				return Clip{}, deviceFailure(err)
			}
		case frame, ok := <-frames:
			if !ok {
				return Clip{}, outcome.Failuref(outcome.KindDeviceError,
					"audio stream ended before speech was captured; check your microphone connection and permissions")
			}
			if rms(frame.PCM) >= threshold {
				pcm = append(pcm, frame.PCM...)
				waiting = false
			}
		}
	}

	silentFrames := 0
	maxSilent := l.framesFor(pauseWindow)
	for silentFrames < maxSilent {
		select {
		case <-ctx.Done():
			return Clip{}, ctx.Err()
		case err := <-errs:
			if err != nil {
				return Clip{}, deviceFailure(err)
			}
		case frame, ok := <-frames:
			if !ok {
				return l.clip(pcm), nil
			}
			pcm = append(pcm, frame.PCM...)
			if rms(frame.PCM) < threshold {
				silentFrames++
			} else {
				silentFrames = 0
			}
		}
	}
	return l.clip(pcm), nil
}

func (l *Listener) clip(pcm []byte) Clip {
	return Clip{PCM: pcm, SampleRate: l.sampleRate, Channels: l.channels}
}

func (l *Listener) framesFor(d time.Duration) int {
	if l.frameDur <= 0 {
		return 1
	}
	n := int(d / l.frameDur)
	if n < 1 {
		n = 1
	}
	return n
}

func (l *Listener) collect(ctx context.Context, frames <-chan Frame, errs <-chan error, n int) ([]Frame, error) {
	var out []Frame
	for len(out) < n {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-errs:
			if err != nil {
				return nil, deviceFailure(err)
			}
		case frame, ok := <-frames:
			if !ok {
				return nil, outcome.Failuref(outcome.KindDeviceError,
					"audio stream ended during noise calibration; check your microphone connection and permissions")
			}
			out = append(out, frame)
		}
	}
	return out, nil
}

func deviceFailure(err error) *outcome.Failure {
	return outcome.Failuref(outcome.KindDeviceError,
		"microphone error: %v; check your microphone connection and permissions", err)
}

func notify(opts ListenOptions, phase Phase) {
	if opts.Notify != nil {
		opts.Notify(phase)
	}
}

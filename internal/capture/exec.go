package capture

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/openscribe/scribed/internal/config"
)

// execSource spawns a capture command (arecord, sox, ffmpeg, ...) and
// chunks its stdout into fixed-size PCM frames.
type execSource struct {
	cmd       []string
	frameSize int
	mu        sync.Mutex
}

func NewExecSource(cfg config.CaptureConfig) (Source, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("capture command is empty")
	}
	frameSize := cfg.SampleRate * cfg.Channels * 2 * cfg.FrameDurationMS / 1000
	if frameSize <= 0 {
		return nil, fmt.Errorf("invalid capture frame size")
	}
	return &execSource{cmd: args, frameSize: frameSize}, nil
}

func (e *execSource) Stream(ctx context.Context) (<-chan Frame, <-chan error) {
	e.mu.Lock()
	frames := make(chan Frame)
	errs := make(chan error, 1)
	go func() {
		defer close(frames)
		defer close(errs)
		defer e.mu.Unlock()

		base := e.cmd[0]
		args := append([]string{}, e.cmd[1:]...)
		cmd := exec.CommandContext(ctx, base, args...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			errs <- err
			return
		}
		if err := cmd.Start(); err != nil {
			errs <- fmt.Errorf("start capture command: %w", err)
			return
		}

		buf := make([]byte, e.frameSize)
		for {
			n, err := io.ReadFull(stdout, buf)
			if n > 0 {
				frame := Frame{PCM: append([]byte(nil), buf[:n]...)}
				select {
				case frames <- frame:
				case <-ctx.Done():
					cmd.Wait()
					return
				}
			}
			if err != nil {
				if err != io.EOF && err != io.ErrUnexpectedEOF && ctx.Err() == nil {
					errs <- fmt.Errorf("read capture stream: %w", err)
				}
				break
			}
		}
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			errs <- fmt.Errorf("capture command failed: %w", err)
		}
	}()
	return frames, errs
}

package capture

import (
	"context"
	"time"
)

// MockSource replays scripted frames. Used for tests and mode=mock.
type MockSource struct {
	Frames []Frame
	Err    error         // emitted after Frames are drained
	Delay  time.Duration // pause between frames
}

func (m *MockSource) Stream(ctx context.Context) (<-chan Frame, <-chan error) {
	frames := make(chan Frame)
	errs := make(chan error, 1)
	go func() {
		defer close(frames)
		defer close(errs)
		for _, frame := range m.Frames {
			if m.Delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(m.Delay):
				}
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
		if m.Err != nil {
			errs <- m.Err
		}
	}()
	return frames, errs
}

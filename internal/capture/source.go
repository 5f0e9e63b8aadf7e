package capture

import (
	"context"
	"time"
)

// Frame is one fixed-duration chunk of 16-bit little-endian PCM.
type Frame struct {
	PCM []byte
}

// Clip is a complete captured utterance.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Duration reports the playback length of the clip.
func (c Clip) Duration() time.Duration {
	bytesPerSecond := c.SampleRate * c.Channels * 2
	if bytesPerSecond <= 0 {
		return 0
	}
	return time.Duration(len(c.PCM)) * time.Second / time.Duration(bytesPerSecond)
}

// TrimLeading drops the first d of audio, mirroring how noise calibration
// consumes the head of a stream before capture begins.
func (c Clip) TrimLeading(d time.Duration) Clip {
	bytesPerSecond := c.SampleRate * c.Channels * 2
	if bytesPerSecond <= 0 || d <= 0 {
		return c
	}
	n := int(d.Seconds() * float64(bytesPerSecond))
	n -= n % 2
	if n >= len(c.PCM) {
		return Clip{SampleRate: c.SampleRate, Channels: c.Channels}
	}
	return Clip{PCM: c.PCM[n:], SampleRate: c.SampleRate, Channels: c.Channels}
}

// Source streams microphone frames until the context is cancelled or the
// device stops producing audio.
type Source interface {
	Stream(ctx context.Context) (<-chan Frame, <-chan error)
}

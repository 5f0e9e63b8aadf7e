package capture

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	defaultEnergyThreshold = 300.0
	energyMultiplier       = 1.5
)

// rms computes the root-mean-square energy of a 16-bit LE PCM buffer.
func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// calibrateThreshold derives a speech/silence energy threshold from
// ambient frames sampled during the calibration window.
func calibrateThreshold(frames []Frame) float64 {
	if len(frames) == 0 {
		return defaultEnergyThreshold
	}
	var total float64
	for _, f := range frames {
		total += rms(f.PCM)
	}
	threshold := total / float64(len(frames)) * energyMultiplier
	if threshold < defaultEnergyThreshold {
		threshold = defaultEnergyThreshold
	}
	return threshold
}

// NoiseFloor measures the mean energy over the leading window of a clip.
// Used to calibrate against the head of an uploaded file.
func NoiseFloor(c Clip, window time.Duration) float64 {
	bytesPerSecond := c.SampleRate * c.Channels * 2
	if bytesPerSecond <= 0 {
		return 0
	}
	n := int(window.Seconds() * float64(bytesPerSecond))
	n -= n % 2
	if n <= 0 || n > len(c.PCM) {
		n = len(c.PCM)
	}
	return rms(c.PCM[:n])
}

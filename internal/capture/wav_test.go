package capture

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEncodeDecodeWAV(t *testing.T) {
	pcm := make([]byte, 16000*2) // one second, mono
	for i := 0; i < len(pcm)/2; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(i%2000)))
	}
	clip := Clip{PCM: pcm, SampleRate: 16000, Channels: 1}

	path := filepath.Join(t.TempDir(), "clip.wav")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := EncodeWAV(file, clip); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	decoded, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.SampleRate != 16000 || decoded.Channels != 1 {
		t.Fatalf("unexpected format: %d/%d", decoded.SampleRate, decoded.Channels)
	}
	if !bytes.Equal(decoded.PCM, clip.PCM) {
		t.Fatal("pcm payload changed across encode/decode")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, err := DecodeWAV(bytes.NewReader([]byte("not a wav file at all"))); err == nil {
		t.Fatal("expected error for invalid wav data")
	}
}

func TestClipTrimLeading(t *testing.T) {
	clip := Clip{PCM: make([]byte, 16000*2), SampleRate: 16000, Channels: 1}
	trimmed := clip.TrimLeading(500 * time.Millisecond)
	if len(trimmed.PCM) != 16000 {
		t.Fatalf("expected half the samples left, got %d bytes", len(trimmed.PCM))
	}
	if got := clip.TrimLeading(2 * time.Second); len(got.PCM) != 0 {
		t.Fatalf("expected empty clip when trimming past the end, got %d bytes", len(got.PCM))
	}
}

func TestClipDuration(t *testing.T) {
	clip := Clip{PCM: make([]byte, 16000), SampleRate: 16000, Channels: 1}
	if clip.Duration() != 500*time.Millisecond {
		t.Fatalf("unexpected duration: %s", clip.Duration())
	}
}

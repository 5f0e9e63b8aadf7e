package artifact

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
)

type countingFs struct {
	afero.Fs
	removes int
}

func (c *countingFs) Remove(name string) error {
	c.removes++
	return c.Fs.Remove(name)
}

func TestWriteAndRemove(t *testing.T) {
	fs := &countingFs{Fs: afero.NewMemMapFs()}
	art, err := Write(fs, "scribed_audio_*.wav", []byte("riff"))
	if err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	data, err := afero.ReadFile(fs, art.Path())
	if err != nil {
		t.Fatalf("read back artifact: %v", err)
	}
	if string(data) != "riff" {
		t.Fatalf("unexpected content: %q", data)
	}
	if err := art.Remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if exists, _ := afero.Exists(fs, art.Path()); exists {
		t.Fatal("expected artifact gone after remove")
	}
	if fs.removes != 1 {
		t.Fatalf("expected exactly one filesystem remove, got %d", fs.removes)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	fs := &countingFs{Fs: afero.NewMemMapFs()}
	art, err := Write(fs, "scribed_audio_*.wav", []byte("x"))
	if err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if err := art.Remove(); err != nil {
		t.Fatalf("first remove: %v", err)
	}
	if err := art.Remove(); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}
	if fs.removes != 1 {
		t.Fatalf("expected one filesystem remove, got %d", fs.removes)
	}
}

func TestCreateCleansUpOnFillError(t *testing.T) {
	fs := &countingFs{Fs: afero.NewMemMapFs()}
	_, err := Create(fs, "scribed_audio_*.wav", func(afero.File) error {
		return errors.New("encode failed")
	})
	if err == nil {
		t.Fatal("expected error from fill")
	}
	if fs.removes != 1 {
		t.Fatalf("expected failed artifact removed, got %d removes", fs.removes)
	}
}

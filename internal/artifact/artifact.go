package artifact

import (
	"fmt"
	"sync"

	"github.com/spf13/afero"
)

// Artifact is an exclusively-owned temporary file holding audio bytes for
// the duration of one recognition call. Callers must Remove it on every
// exit path, usually via defer.
type Artifact struct {
	fs   afero.Fs
	path string

	mu      sync.Mutex
	removed bool
}

// Create materializes a new temp file and hands it to fill before the
// artifact is returned. pattern follows os.CreateTemp semantics.
func Create(fs afero.Fs, pattern string, fill func(afero.File) error) (*Artifact, error) {
	file, err := afero.TempFile(fs, "", pattern)
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	if err := fill(file); err != nil {
		file.Close()
		_ = fs.Remove(file.Name())
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = fs.Remove(file.Name())
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	return &Artifact{fs: fs, path: file.Name()}, nil
}

// Write materializes data into a new temp file.
func Write(fs afero.Fs, pattern string, data []byte) (*Artifact, error) {
	return Create(fs, pattern, func(file afero.File) error {
		_, err := file.Write(data)
		return err
	})
}

// Path returns the location of the materialized audio.
func (a *Artifact) Path() string { return a.path }

// Remove deletes the underlying file. Safe to call more than once; only
// the first call touches the filesystem.
func (a *Artifact) Remove() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.removed {
		return nil
	}
	a.removed = true
	return a.fs.Remove(a.path)
}

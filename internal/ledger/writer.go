// Package ledger owns every file the orchestrator writes: generated targets,
// per-file evidence, the run log, the ledger and the checkpoint.
//
// All stores resolve paths against one workspace root and take their
// timestamps from an injected Clock, never from the wall clock. Each store
// assumes it is the only writer of its file; there is no inter-process
// locking.
package ledger

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"composer/internal/content"
	"composer/internal/logging"
)

// ErrOutsideRoot is returned for relative paths that resolve outside the
// workspace root.
var ErrOutsideRoot = errors.New("path escapes workspace root")

// Clock returns the timestamp recorded in every artifact.
type Clock func() string

// FixedClock returns a Clock that always reports ts.
func FixedClock(ts string) Clock {
	return func() string { return ts }
}

// Option configures a store.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock overrides the timestamp source (default content.DefaultClock).
func WithClock(clock Clock) Option {
	return func(o *options) { o.clock = clock }
}

func buildOptions(opts []Option) options {
	o := options{clock: FixedClock(content.DefaultClock)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Root is a workspace directory that relative paths resolve against.
type Root string

// Resolve returns the absolute location of relPath under the root.
func (r Root) Resolve(relPath string) (string, error) {
	clean := filepath.FromSlash(relPath)
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%q: %w", relPath, ErrOutsideRoot)
	}
	return filepath.Join(string(r), clean), nil
}

// Writer writes generated files only when their bytes change.
type Writer struct {
	root Root
}

// NewWriter returns a writer rooted at root.
func NewWriter(root string) *Writer {
	return &Writer{root: Root(root)}
}

// WriteIfChanged writes data to relPath unless the file already holds
// identical bytes. It reports whether the file was written.
func (w *Writer) WriteIfChanged(relPath, data string) (bool, error) {
	abs, err := w.root.Resolve(relPath)
	if err != nil {
		return false, err
	}

	prev, err := os.ReadFile(abs)
	switch {
	case err == nil:
		if sha256.Sum256(prev) == sha256.Sum256([]byte(data)) {
			logging.Get(logging.CategoryWriter).Debug("unchanged: %s", relPath)
			return false, nil
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return false, fmt.Errorf("read %s: %w", relPath, err)
	}

	if err := writeFileAtomic(abs, []byte(data), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", relPath, err)
	}
	logging.Get(logging.CategoryWriter).Debug("wrote: %s (%d bytes)", relPath, len(data))
	return true, nil
}

// writeFileAtomic writes data to a temp file beside path and renames it
// into place, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}

package scan

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches rapid successive writes to the same file.
const DefaultDebounce = 100 * time.Millisecond

// Watch re-validates files as they are created or written, calling onResult
// for each, until ctx is cancelled. Directories created while watching are
// added to the watch set.
func (s *Scanner) Watch(ctx context.Context, onResult func(FileReport)) error {
	return s.watch(ctx, DefaultDebounce, onResult)
}

func (s *Scanner) watch(ctx context.Context, debounce time.Duration, onResult func(FileReport)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			s.log.Error("close watcher: %v", err)
		}
	}()

	if err := s.addDirs(watcher, s.root); err != nil {
		return err
	}
	s.log.Info("watching %s", s.root)

	ticker := time.NewTicker(debounce)
	defer ticker.Stop()
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			rel, err := filepath.Rel(s.root, event.Name)
			if err != nil || s.Excluded(rel) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if err := s.addDirs(watcher, event.Name); err != nil {
					s.log.Warn("watch %s: %v", rel, err)
				}
				continue
			}
			if info.Mode().IsRegular() {
				pending[filepath.ToSlash(rel)] = struct{}{}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Error("watcher: %v", err)

		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			files := make([]string, 0, len(pending))
			for rel := range pending {
				files = append(files, rel)
			}
			clear(pending)
			sort.Strings(files)
			for _, rel := range files {
				onResult(s.Check(rel, s.read(rel)))
			}
		}
	}
}

// addDirs watches dir and every non-excluded directory below it.
func (s *Scanner) addDirs(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, err := filepath.Rel(s.root, p); err == nil && rel != "." && s.Excluded(rel) {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
}

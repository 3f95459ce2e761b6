package settings

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNoFileBackend is returned by Watch when the store is not file backed.
var ErrNoFileBackend = errors.New("settings: watch requires a file backend")

// DefaultDebounce collapses bursts of file events into one reload.
const DefaultDebounce = 100 * time.Millisecond

// Watch reloads the store whenever its backing file changes on disk. The
// directory holding the file is watched so editors that replace the file
// are handled. Watch returns once the watcher is installed; it stops when
// ctx is done.
func (s *Store) Watch(ctx context.Context, debounce time.Duration) error {
	fb, ok := s.backend.(*FileBackend)
	if !ok {
		return ErrNoFileBackend
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	target, err := filepath.Abs(fb.Path())
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		fsw.Close()
		return err
	}

	go s.watchLoop(ctx, fsw, target, debounce)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, fsw *fsnotify.Watcher, target string, debounce time.Duration) {
	defer fsw.Close()

	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			s.logger.Warn("settings watcher error", "err", err)

		case <-timer.C:
			if err := s.Reload("file"); err != nil {
				s.logger.Warn("settings reload failed", "err", err)
			}
		}
	}
}

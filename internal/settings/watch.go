package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// Watcher is implemented by backends that can report external changes.
type Watcher interface {
	Watch(ctx context.Context, fn func(Document, error)) error
}

// Watch reloads the document whenever the settings file changes on disk and
// passes the result to fn. It blocks until ctx is done. The directory is
// watched rather than the file because saves replace the file by rename.
func (b *FileBackend) Watch(ctx context.Context, fn func(Document, error)) error {
	path, err := b.Target(ctx)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	base := filepath.Base(path)
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			pending = time.After(watchDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			b.logger.Warn("settings: watcher error", "path", path, "error", err)
		case <-pending:
			pending = nil
			doc, err := b.Load(ctx)
			fn(doc, err)
		}
	}
}

// Watch forwards to the backend when it supports watching.
func (s *Store) Watch(ctx context.Context, fn func(Document, error)) error {
	w, ok := s.backend.(Watcher)
	if !ok {
		return fmt.Errorf("the %s backend does not support watching", s.backend.Name())
	}
	return w.Watch(ctx, fn)
}

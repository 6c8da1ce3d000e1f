package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must be quiet before it is re-indexed.
const DefaultDebounce = 500 * time.Millisecond

// Watch re-indexes files under dir as they change until ctx is done.
// Removed files have their chunks deleted. Each path is handled once per
// burst of events.
func (ix *Indexer) Watch(ctx context.Context, dir string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addTree(watcher, dir); err != nil {
		return err
	}

	pending := map[string]time.Time{}
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if hidden(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(watcher, event.Name); err != nil {
						ix.logger.Warn("watching new directory", zap.Error(err))
					}
					continue
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)

		case now := <-ticker.C:
			for path, at := range pending {
				if now.Sub(at) < debounce {
					continue
				}
				delete(pending, path)
				ix.refresh(ctx, dir, path)
			}
		}
	}
}

// refresh re-indexes path, or removes it from the index if it is gone.
func (ix *Indexer) refresh(ctx context.Context, dir, path string) {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := ix.Remove(ctx, rel); err != nil {
			ix.logger.Warn("removing file from index", zap.String("file", rel), zap.Error(err))
		}
		return
	}

	n, err := ix.IndexFile(ctx, dir, rel)
	if err != nil {
		ix.logger.Warn("re-indexing file", zap.String("file", rel), zap.Error(err))
		return
	}
	ix.logger.Info("re-indexed file", zap.String("file", rel), zap.Int("chunks", n))
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if hidden(d.Name()) && path != root {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

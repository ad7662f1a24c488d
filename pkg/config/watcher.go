package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/mochi-hpc/go-bedrock/pkg/spec"
)

// ReloadFunc receives the outcome of reloading one changed descriptor
// file. On a load failure tree is nil and err carries the reason; the
// watcher keeps running either way.
type ReloadFunc func(path string, tree *spec.ProcSpec, err error)

// Watcher reloads descriptor files when they change on disk. Change
// bursts are debounced so editors that write in several steps trigger a
// single reload.
type Watcher struct {
	loader   *Loader
	logger   zerolog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewWatcher creates a watcher that loads changed files with the given
// loader.
func NewWatcher(loader *Loader, logger zerolog.Logger) *Watcher {
	return &Watcher{
		loader:   loader,
		logger:   logger.With().Str("component", "config-watcher").Logger(),
		debounce: 500 * time.Millisecond,
		pending:  make(map[string]struct{}),
	}
}

// Watch starts watching paths for descriptor changes and calls reloadFn
// for every changed file after the debounce window. Directories are
// watched recursively. Watch returns after the watches are established;
// the event loop runs until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context, paths []string, reloadFn ReloadFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	w.watcher = watcher

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("Failed to stat path for watching")
			continue
		}

		if info.IsDir() {
			if err := w.watchDirectory(path); err != nil {
				w.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch directory")
			}
		} else {
			if err := watcher.Add(path); err != nil {
				w.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch file")
			}
		}
	}

	go w.processEvents(ctx, reloadFn)

	w.logger.Info().
		Int("paths", len(paths)).
		Msg("Started watching descriptor paths")

	return nil
}

// watchDirectory adds a directory and its subdirectories to the watcher.
func (w *Watcher) watchDirectory(dirPath string) error {
	return filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return w.watcher.Add(path)
		}

		return nil
	})
}

// processEvents processes file system events and triggers reloads.
func (w *Watcher) processEvents(ctx context.Context, reloadFn ReloadFunc) {
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if w.watcher != nil {
				_ = w.watcher.Close()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !isDescriptorFile(event.Name) {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Descriptor file changed")

			w.mu.Lock()
			w.pending[event.Name] = struct{}{}
			w.mu.Unlock()

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(w.debounce, func() {
				w.reloadPending(ctx, reloadFn)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// reloadPending loads every file accumulated during the debounce window.
func (w *Watcher) reloadPending(ctx context.Context, reloadFn ReloadFunc) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	for _, path := range paths {
		tree, err := w.loader.Load(ctx, path)
		if err != nil {
			w.logger.Error().Err(err).Str("path", path).Msg("Failed to reload descriptor")
		} else {
			w.logger.Info().Str("path", path).Msg("Descriptor reloaded")
		}
		reloadFn(path, tree, err)
	}
}

// isDescriptorFile reports whether a path looks like a descriptor source.
func isDescriptorFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

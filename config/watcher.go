package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileChangeEvent describes a watched file whose content changed.
type FileChangeEvent struct {
	Path    string
	OldHash string
	NewHash string
	Time    time.Time
}

// WatcherOption configures a FileWatcher.
type WatcherOption func(*FileWatcher)

// WithWatchDebounce sets the debounce duration for file change events.
func WithWatchDebounce(d time.Duration) WatcherOption {
	return func(w *FileWatcher) { w.debounce = d }
}

// WithWatchLogger sets the logger for the watcher.
func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(w *FileWatcher) { w.logger = l }
}

// FileWatcher monitors a set of files and invokes a callback when the
// content of one changes. It watches the containing directories so atomic
// saves (rename-over) are seen.
type FileWatcher struct {
	paths    []string
	debounce time.Duration
	logger   *slog.Logger
	onChange func(FileChangeEvent)

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu      sync.Mutex
	hashes  map[string]string
	pending map[string]time.Time // path -> last event time
}

// NewFileWatcher creates a FileWatcher for paths.
func NewFileWatcher(paths []string, onChange func(FileChangeEvent), opts ...WatcherOption) *FileWatcher {
	w := &FileWatcher{
		debounce: 500 * time.Millisecond,
		logger:   slog.Default(),
		onChange: onChange,
		done:     make(chan struct{}),
		hashes:   make(map[string]string),
		pending:  make(map[string]time.Time),
	}
	for _, p := range paths {
		w.paths = append(w.paths, filepath.Clean(p))
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HashFile returns the SHA256 hex digest of the file at path.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Start records the current hash of every file and begins watching.
func (w *FileWatcher) Start() error {
	if len(w.paths) == 0 {
		return fmt.Errorf("file watcher: no files to watch")
	}
	for _, p := range w.paths {
		hash, err := HashFile(p)
		if err != nil {
			return fmt.Errorf("file watcher: initial hash: %w", err)
		}
		w.hashes[p] = hash
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("file watcher: create fsnotify: %w", err)
	}
	w.fsWatcher = fsw

	dirs := make(map[string]bool)
	for _, p := range w.paths {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return fmt.Errorf("file watcher: watch %s: %w", dir, err)
		}
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop terminates the watcher and waits for the background goroutine to exit.
// It is safe to call Stop multiple times.
func (w *FileWatcher) Stop() error {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

func (w *FileWatcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// A write anywhere in a watched directory marks every file in it;
			// symlink swaps (..data) never name the file itself. The hash
			// check filters out the files that did not change.
			dir := filepath.Dir(filepath.Clean(event.Name))
			w.mu.Lock()
			for _, p := range w.paths {
				if filepath.Dir(p) == dir {
					w.pending[p] = time.Now()
				}
			}
			w.mu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "err", err)

		case <-ticker.C:
			w.processPending()
		}
	}
}

func (w *FileWatcher) processPending() {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, t := range w.pending {
		if now.Sub(t) >= w.debounce {
			ready = append(ready, path)
		}
	}
	for _, path := range ready {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.processChange(path)
	}
}

// processChange calls onChange if the content of path differs from the last
// known hash.
func (w *FileWatcher) processChange(path string) {
	newHash, err := HashFile(path)
	if err != nil {
		w.logger.Error("file watcher: failed to hash file", "path", path, "err", err)
		return
	}

	w.mu.Lock()
	oldHash := w.hashes[path]
	if newHash == oldHash {
		w.mu.Unlock()
		w.logger.Debug("file watcher: content unchanged, skipping", "path", path)
		return
	}
	w.hashes[path] = newHash
	w.mu.Unlock()

	w.logger.Info("watched file changed", "path", path, "old_hash", oldHash[:8], "new_hash", newHash[:8])

	w.onChange(FileChangeEvent{
		Path:    path,
		OldHash: oldHash,
		NewHash: newHash,
		Time:    time.Now(),
	})
}

package hook

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher reloads the registry when files in the hook directories change.
// Editors tend to emit bursts of events per save, so reloads are debounced.
// Recursive collect paths are watched down to every subdirectory, including
// directories created while watching.
type Watcher struct {
	registry       *Registry
	watcher        *fsnotify.Watcher
	debounce       time.Duration
	recursiveRoots []string

	mu    sync.Mutex
	timer *time.Timer

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher over the registry's collect paths.
func NewWatcher(registry *Registry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		registry: registry,
		watcher:  fsw,
		debounce: defaultDebounce,
		stopCh:   make(chan struct{}),
	}

	for _, p := range registry.paths {
		if err := w.watch(p); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

// watch registers a collect path, descending into subdirectories when the
// path is recursive.
func (w *Watcher) watch(p CollectPath) error {
	if !p.Recursive {
		if err := w.watcher.Add(p.Dir); err != nil {
			return fmt.Errorf("watching %s: %w", p.Dir, err)
		}
		return nil
	}

	w.recursiveRoots = append(w.recursiveRoots, p.Dir)
	return filepath.WalkDir(p.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if addErr := w.watcher.Add(path); addErr != nil {
			return fmt.Errorf("watching %s: %w", path, addErr)
		}
		return nil
	})
}

// SetDebounce overrides the debounce interval.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Start begins processing file events.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.eventLoop()
}

// Stop shuts the watcher down and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	err := w.watcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	return err
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Chmod) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				w.maybeWatchNewDir(event.Name)
			}
			w.scheduleReload(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Hook watcher error")
		}
	}
}

// maybeWatchNewDir adds directories created under a recursive collect path,
// so hooks placed there later still trigger reloads.
func (w *Watcher) maybeWatchNewDir(path string) {
	if !w.underRecursiveRoot(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.watcher.Add(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to watch new hook directory")
	}
}

func (w *Watcher) underRecursiveRoot(path string) bool {
	for _, root := range w.recursiveRoots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) scheduleReload(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	log.Debug().Str("path", path).Msg("Hook file changed")

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if _, err := w.registry.Reload(); err != nil {
			log.Error().Err(err).Msg("Hook reload failed, keeping previous hooks")
		}
	})
}

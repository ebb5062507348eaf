package watcher

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/gitpm/internal/config"
	"github.com/blackwell-systems/gitpm/internal/log"
)

// DefaultDebounce is how long the Watcher waits after the last event on the
// links file before reloading it.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a links file whenever it changes and reports the links
// added since the previous load.
type Watcher struct {
	path     string
	onLinks  func([]string)
	debounce time.Duration

	mu    sync.Mutex
	known map[string]bool

	fs      *fsnotify.Watcher
	stopCh  chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

// New creates a Watcher for the links file at path. onLinks receives the
// links that are new since the last load; it is called from the watcher
// goroutine.
func New(path string, onLinks func(links []string)) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("links file path cannot be empty")
	}
	if onLinks == nil {
		return nil, errors.New("links callback cannot be nil")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving links file: %w", err)
	}
	return &Watcher{
		path:     abs,
		onLinks:  onLinks,
		debounce: DefaultDebounce,
		known:    make(map[string]bool),
		stopCh:   make(chan struct{}),
	}, nil
}

// SetDebounce changes the coalescing delay. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Start loads the links file once and begins watching it. The directory
// holding the file must exist.
func (w *Watcher) Start() error {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(w.path)); err != nil {
		fs.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}
	w.fs = fs

	if err := w.Reload(); err != nil {
		log.Warn("watcher: initial load of %s: %v", w.path, err)
	}

	w.wg.Add(1)
	go w.run()

	log.Info("watching %s", w.path)
	return nil
}

func (w *Watcher) run() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			log.Debug("watcher: %s", event)
			timer.Reset(w.debounce)

		case <-timer.C:
			if err := w.Reload(); err != nil {
				log.Warn("watcher: reloading %s: %v", w.path, err)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Warn("watcher: %v", err)

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// Reload reads the links file and passes links not seen in the previous load
// to the callback. Links dropped from the file are forgotten, so adding them
// back reports them again.
func (w *Watcher) Reload() error {
	links, err := config.LoadLinks(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	current := make(map[string]bool, len(links))
	var added []string
	for _, link := range links {
		if current[link] {
			continue
		}
		current[link] = true
		if !w.known[link] {
			added = append(added, link)
		}
	}
	w.known = current
	w.mu.Unlock()

	if len(added) > 0 {
		log.Debug("watcher: %d new link(s) in %s", len(added), w.path)
		w.onLinks(added)
	}
	return nil
}

// Stop halts the watcher and waits for its goroutine to exit. It is safe to
// call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()

	if w.fs != nil {
		return w.fs.Close()
	}
	return nil
}

package actors

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigChangeCallback is called after a successful reload with the old and
// new configuration.
type ConfigChangeCallback func(old, new Config)

// ConfigWatcher watches a YAML config file and reloads it on change.
// Reloads are debounced so editors that write in several steps trigger one
// reload. Callers decide which settings to re-apply; the runtime itself
// only picks up dynamic ones like the dead letter log rate.
type ConfigWatcher struct {
	path      string
	fsWatcher *fsnotify.Watcher
	logger    *slog.Logger

	mu      sync.RWMutex
	current Config

	callbacksMu sync.RWMutex
	callbacks   []ConfigChangeCallback

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewConfigWatcher loads the file once and prepares a watcher for it.
func NewConfigWatcher(path string, logger *slog.Logger) (*ConfigWatcher, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigWatcher{
		path:      path,
		fsWatcher: fsWatcher,
		logger:    logger,
		current:   cfg,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start begins watching the file.
func (w *ConfigWatcher) Start() error {
	if err := w.fsWatcher.Add(w.path); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}
	w.wg.Add(1)
	go w.watchLoop()
	return nil
}

// Stop stops watching and waits for the loop to exit.
func (w *ConfigWatcher) Stop() error {
	close(w.stopCh)
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

// Current returns the most recently loaded configuration.
func (w *ConfigWatcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback invoked after each successful reload.
func (w *ConfigWatcher) OnChange(fn ConfigChangeCallback) {
	w.callbacksMu.Lock()
	w.callbacks = append(w.callbacks, fn)
	w.callbacksMu.Unlock()
}

// Reload re-reads the file immediately.
func (w *ConfigWatcher) Reload() error {
	return w.reload()
}

func (w *ConfigWatcher) watchLoop() {
	defer w.wg.Done()

	var debounce *time.Timer
	const debounceDelay = 500 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, func() {
					if err := w.reload(); err != nil {
						w.logger.Warn("config reload failed", "path", w.path, "error", err)
					}
				})
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.logger.Warn("config file removed or renamed", "path", w.path)
				// Re-add in case the file was atomically replaced.
				time.AfterFunc(time.Second, func() {
					if err := w.fsWatcher.Add(w.path); err != nil {
						w.logger.Warn("re-watch config file failed", "path", w.path, "error", err)
					}
				})
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *ConfigWatcher) reload() error {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.mu.Unlock()

	w.logger.Info("config reloaded", "path", w.path)

	w.callbacksMu.RLock()
	callbacks := append([]ConfigChangeCallback(nil), w.callbacks...)
	w.callbacksMu.RUnlock()
	for _, fn := range callbacks {
		fn(old, cfg)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher hot reloads configuration when its files change. Reloading is
// only enabled in development; elsewhere the watcher is inert.
type Watcher struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
	logger    *zap.Logger
	fs        *fsnotify.Watcher
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewWatcher creates a watcher around the initial configuration.
func NewWatcher(initial *Config, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		config: initial,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	if !initial.IsDevelopment() {
		logger.Info("Configuration hot reload disabled",
			zap.String("environment", string(initial.Environment)))
		return w, nil
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	w.fs = fs

	if err := w.watchConfigDir(); err != nil {
		fs.Close()
		return nil, err
	}

	go w.loop()
	logger.Info("Configuration hot reload enabled")
	return w, nil
}

func (w *Watcher) watchConfigDir() error {
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "config"
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watch config directory %s: %w", dir, err)
	}
	return nil
}

func (w *Watcher) loop() {
	defer w.fs.Close()

	// Editors fire several events per save; debounce into one reload.
	var debounce *time.Timer
	const debounceDelay = 500 * time.Millisecond

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !isConfigFile(event.Name) {
				continue
			}
			w.logger.Info("Configuration file changed",
				zap.String("file", event.Name),
				zap.String("op", event.Op.String()))
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, w.reload)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("Config watcher error", zap.Error(err))

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) reload() {
	next, err := Load()
	if err != nil {
		w.logger.Error("Configuration reload rejected", zap.Error(err))
		return
	}

	w.mu.Lock()
	prev := w.config
	if reflect.DeepEqual(prev, next) {
		w.mu.Unlock()
		return
	}
	w.config = next
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("Configuration reloaded",
		zap.Strings("sources", next.LoadedFrom),
		zap.Int("callbacks", len(callbacks)))

	for _, cb := range callbacks {
		go func(cb func(*Config)) {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("Config callback panicked", zap.Any("panic", r))
				}
			}()
			cb(next)
		}(cb)
	}
}

// OnChange registers a callback invoked after each successful reload.
func (w *Watcher) OnChange(cb func(*Config)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, cb)
	w.mu.Unlock()
}

// Config returns the current configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.fs != nil {
			w.fs.Close()
		}
	})
}

func isConfigFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

package config

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var _ Watcher = (*ConfigWatcher)(nil)

// ConfigWatcher reloads the configuration file when it changes and pushes
// each valid revision to its subscribers. Invalid revisions are logged and
// the previous configuration stays current.
type ConfigWatcher struct {
	current    atomic.Pointer[Config]
	configPath string
	watcher    *fsnotify.Watcher
	logger     *zap.Logger

	mu          sync.Mutex
	subscribers []chan *Config
	closed      bool
}

// NewConfigWatcher loads configPath and starts watching it.
func NewConfigWatcher(configPath string, logger *zap.Logger) (*ConfigWatcher, error) {
	initial, err := LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config file: %w", err)
	}

	cw := &ConfigWatcher{
		configPath: configPath,
		watcher:    watcher,
		logger:     logger,
	}
	cw.current.Store(initial)

	go cw.watch()
	return cw, nil
}

// Subscribe returns a channel receiving every configuration reloaded after
// the call. Slow subscribers miss intermediate revisions.
func (cw *ConfigWatcher) Subscribe() <-chan *Config {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	ch := make(chan *Config, 1)
	if cw.closed {
		close(ch)
		return ch
	}
	cw.subscribers = append(cw.subscribers, ch)
	return ch
}

// GetCurrentConfig returns the last valid configuration.
func (cw *ConfigWatcher) GetCurrentConfig() *Config {
	return cw.current.Load()
}

func (cw *ConfigWatcher) watch() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				cw.reload()
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Config watcher error", zap.Error(err))
		}
	}
}

func (cw *ConfigWatcher) reload() {
	cfg, err := LoadFile(cw.configPath)
	if err != nil {
		cw.logger.Error("Keeping previous configuration", zap.Error(err))
		return
	}
	cw.current.Store(cfg)

	cw.mu.Lock()
	defer cw.mu.Unlock()
	for _, sub := range cw.subscribers {
		select {
		case sub <- cfg:
		default:
		}
	}

	cw.logger.Info("Configuration reloaded",
		zap.String("path", cw.configPath),
		zap.String("base_url", cfg.Generation.BaseURL),
	)
}

// Close stops watching and closes every subscriber channel.
func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	if !cw.closed {
		cw.closed = true
		for _, sub := range cw.subscribers {
			close(sub)
		}
		cw.subscribers = nil
	}
	cw.mu.Unlock()

	return cw.watcher.Close()
}

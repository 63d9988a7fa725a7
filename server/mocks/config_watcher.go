package mocks

import (
	"sync"
	"sync/atomic"

	"github.com/teilomillet/chatrelay/config"
)

// MockConfigWatcher feeds configuration revisions without touching the filesystem.
type MockConfigWatcher struct {
	current     atomic.Pointer[config.Config]
	mu          sync.Mutex
	subscribers []chan *config.Config
}

var _ config.Watcher = (*MockConfigWatcher)(nil)

// NewMockConfigWatcher creates a watcher whose current revision is cfg.
func NewMockConfigWatcher(cfg *config.Config) *MockConfigWatcher {
	m := &MockConfigWatcher{}
	m.current.Store(cfg)
	return m
}

// GetCurrentConfig implements config.Watcher
func (m *MockConfigWatcher) GetCurrentConfig() *config.Config {
	return m.current.Load()
}

// Subscribe implements config.Watcher. Revisions are only delivered after
// subscription, matching ConfigWatcher.
func (m *MockConfigWatcher) Subscribe() <-chan *config.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *config.Config, 1)
	m.subscribers = append(m.subscribers, ch)
	return ch
}

// Close implements config.Watcher
func (m *MockConfigWatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = nil
	return nil
}

// UpdateConfig simulates a configuration change on disk.
func (m *MockConfigWatcher) UpdateConfig(cfg *config.Config) {
	m.current.Store(cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- cfg:
		default:
		}
	}
}

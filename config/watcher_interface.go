package config

// Watcher is implemented by ConfigWatcher and by test doubles that feed
// configuration revisions to the server.
type Watcher interface {
	GetCurrentConfig() *Config
	Subscribe() <-chan *Config
	Close() error
}

package server

import (
	"github.com/collabwhiteboard/cwse/internal/logging"
	"github.com/collabwhiteboard/cwse/pkg/checkpoint"
)

// Config carries Manager's tunables using the functional-options pattern.
type Config struct {
	logger             logging.Logger
	checkpoints        checkpoint.Store
	metrics            *Metrics
	tombstoneCacheSize int // <= 0 means unbounded, reference behavior
}

// Option configures a Manager at construction time.
type Option func(*Config)

// WithLogger overrides the default no-op logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Config) { c.logger = l }
}

// WithCheckpointStore overrides the default in-memory checkpoint.Store.
func WithCheckpointStore(s checkpoint.Store) Option {
	return func(c *Config) { c.checkpoints = s }
}

// WithMetrics attaches a Metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(c *Config) { c.metrics = m }
}

// WithTombstoneCacheSize bounds tombstone growth to the given number of
// most-recently-tombstoned ids. A size <= 0 (the default) keeps the
// unbounded behavior.
func WithTombstoneCacheSize(size int) Option {
	return func(c *Config) { c.tombstoneCacheSize = size }
}

func defaultConfig() Config {
	return Config{
		logger:      logging.NoOp(),
		checkpoints: checkpoint.NewMemoryStore(),
	}
}

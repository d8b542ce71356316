package client

import (
	"github.com/collabwhiteboard/cwse/internal/logging"
	"github.com/collabwhiteboard/cwse/pkg/undo"
)

// Config carries Manager's tunables, following the same functional-options
// idiom as pkg/server.Config.
type Config struct {
	logger           logging.Logger
	undoRedoCapacity int
}

// Option configures a Manager at construction time.
type Option func(*Config)

// WithLogger overrides the default no-op logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Config) { c.logger = l }
}

// WithUndoRedoCapacity overrides UNDO_REDO_STACK_SIZE default.
func WithUndoRedoCapacity(n int) Option {
	return func(c *Config) { c.undoRedoCapacity = n }
}

func defaultConfig() Config {
	return Config{
		logger:           logging.NoOp(),
		undoRedoCapacity: undo.DefaultCapacity,
	}
}

// Package worker settles queued feed updates: it stores each result set and
// re-tallies the round.
package worker

import (
	"github.com/okian/scoreline/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithOnSettled registers a callback invoked after every successful settlement.
func WithOnSettled(fn func(Settled)) Option {
	return func(w *InMemoryWorker) {
		w.onSettled = fn
	}
}

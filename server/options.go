package server

import (
	"time"

	"github.com/kmjones1979/ampersend-sdk/logger"
	"github.com/kmjones1979/ampersend-sdk/metrics"
	"github.com/kmjones1979/ampersend-sdk/verification"
)

type options struct {
	store    RequirementsStore
	verifier verification.Verifier
	logger   logger.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// Option configures the executors in this package.
type Option func(*options)

// WithStore sets where requirements wait for payment. Defaults to a MemoryStore.
func WithStore(s RequirementsStore) Option {
	return func(o *options) { o.store = s }
}

// WithVerifier runs v on every submitted payment before the facilitator sees it.
func WithVerifier(v verification.Verifier) Option {
	return func(o *options) { o.verifier = v }
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) { o.metrics = r }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = NewMemoryStore()
	}
	o.logger = logger.OrNoop(o.logger)
	o.metrics = metrics.OrNoop(o.metrics)
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

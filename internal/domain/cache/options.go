package cache

import (
	"time"

	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/metrics"
)

// Option applies a configuration option to a Manager.
type Option func(*settings)

type settings struct {
	ttl      time.Duration
	capacity int
	now      func() time.Time
	name     string
	metrics  *metrics.Manager
}

// WithTTL sets the entry lifetime. Zero or negative disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) { s.ttl = ttl }
}

// WithCapacity bounds the number of entries. Values below 1 are raised to 1.
func WithCapacity(n int) Option {
	return func(s *settings) { s.capacity = n }
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithName labels the cache in metrics.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *settings) { s.metrics = m }
}

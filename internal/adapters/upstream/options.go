package upstream

import (
	"net/http"
	"time"

	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/logger"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/metrics"
)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithTimeout sets the per-attempt client timeout on the default client.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client = &http.Client{Timeout: d, Transport: f.client.Transport}
		}
	}
}

// WithMaxAttempts sets the transport retry budget.
func WithMaxAttempts(n int) Option { return func(f *Fetcher) { f.maxAttempts = n } }

// WithBackoffBase sets the base of the exponential backoff.
func WithBackoffBase(d time.Duration) Option { return func(f *Fetcher) { f.backoffBase = d } }

// WithEmptyRetries sets the empty-response retry budget and its wait.
func WithEmptyRetries(n int, wait time.Duration) Option {
	return func(f *Fetcher) {
		f.emptyRetries = n
		f.emptyBackoff = wait
	}
}

// WithSleeper replaces the backoff sleeper.
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) {
		if s != nil {
			f.sleep = s
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option { return func(f *Fetcher) { f.userAgent = ua } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(f *Fetcher) { f.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Manager) Option { return func(f *Fetcher) { f.metrics = m } }

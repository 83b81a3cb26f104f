package prebuilt

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Option configures a Syncer.
type Option func(*syncConfig) error

// syncConfig holds all Syncer configuration.
type syncConfig struct {
	baseURL          string
	concurrency      int
	timeout          time.Duration
	breakerThreshold int
	httpClient       *http.Client
	failFast         bool
	onProgress       func(SyncProgress)

	// logger is the structured logger for debug/info output.
	// If nil, logging is disabled (silent mode).
	logger *slog.Logger
}

// WithBaseURL sets the release download location template.
// "{version}" is replaced by the release identifier.
func WithBaseURL(template string) Option {
	return func(c *syncConfig) error {
		c.baseURL = template
		return nil
	}
}

// WithConcurrency sets how many checksum files are fetched in parallel.
func WithConcurrency(n int) Option {
	return func(c *syncConfig) error {
		c.concurrency = n
		return nil
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *syncConfig) error {
		c.timeout = d
		return nil
	}
}

// WithBreaker makes requests to a host fail fast after threshold
// consecutive failures. Zero disables it.
func WithBreaker(threshold int) Option {
	return func(c *syncConfig) error {
		c.breakerThreshold = threshold
		return nil
	}
}

// WithHTTPClient sets a custom HTTP client for upstream requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *syncConfig) error {
		c.httpClient = client
		return nil
	}
}

// WithFailFast makes Sync stop at the first release that fails to update.
// By default Sync attempts every release and reports all failures.
func WithFailFast() Option {
	return func(c *syncConfig) error {
		c.failFast = true
		return nil
	}
}

// WithProgress sets a callback invoked after each release Sync attempts.
func WithProgress(fn func(SyncProgress)) Option {
	return func(c *syncConfig) error {
		c.onProgress = fn
		return nil
	}
}

// WithLogger sets a structured logger for sync diagnostics.
// If not set, logging is disabled (silent mode).
func WithLogger(l *slog.Logger) Option {
	return func(c *syncConfig) error {
		c.logger = l
		return nil
	}
}

// validate checks the configuration for logical consistency.
func (c *syncConfig) validate() error {
	if c.concurrency < 0 {
		return errors.New("concurrency must not be negative")
	}
	if c.timeout < 0 {
		return errors.New("timeout must be positive")
	}
	if c.breakerThreshold < 0 {
		return errors.New("breaker threshold must not be negative")
	}
	return nil
}

// log returns the configured logger, or a discarding logger if none was set.
func (c *syncConfig) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.New(slog.DiscardHandler)
}

// newSyncConfig applies opts and validates the result.
func newSyncConfig(opts ...Option) (*syncConfig, error) {
	c := &syncConfig{}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

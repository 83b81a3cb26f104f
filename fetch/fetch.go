// Package fetch performs plain HTTP GET requests against upstream release
// hosts.
//
// A Fetcher never retries. Every failure, whether transport-level or a
// non-200 response, surfaces as a *FetchError carrying the URL. An optional
// per-host circuit breaker makes repeated failures against a dead host fail
// fast instead of waiting on each request.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
	circuit "github.com/rubyist/circuitbreaker"
)

// Client configuration defaults.
const (
	DefaultMaxIdleConns        = 50
	DefaultMaxIdleConnsPerHost = 20
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultRequestTimeout      = 30 * time.Second
	DefaultUserAgent           = "go-prebuilt"

	dnsRefreshInterval = 5 * time.Minute
)

var (
	// ErrNotFound indicates the upstream returned 404.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamDown indicates the circuit breaker for a host is open.
	ErrUpstreamDown = errors.New("upstream unavailable")
)

// FetchError reports a failed GET. StatusCode is zero when no response was
// received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher downloads small upstream documents: release manifests and
// checksum files.
type Fetcher struct {
	client           *http.Client
	userAgent        string
	breakerThreshold int

	mu       sync.Mutex
	breakers map[string]*circuit.Breaker

	// dns is nil when a caller-supplied client replaced the default
	// transport. Its refresh loop starts on first use and stops on Close.
	dns         *dnscache.Resolver
	refreshOnce sync.Once
	closeOnce   sync.Once
	done        chan struct{}
	refreshing  atomic.Bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
		f.dns = nil
	}
}

// WithTimeout sets the per-request timeout.
// Zero or negative values fall back to DefaultRequestTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.client.Timeout = timeout
		} else {
			f.client.Timeout = DefaultRequestTimeout
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithBreaker enables a per-host circuit breaker that opens after threshold
// consecutive failures. Values <= 0 disable it.
func WithBreaker(threshold int) Option {
	return func(f *Fetcher) {
		f.breakerThreshold = threshold
	}
}

// NewFetcher creates a Fetcher whose transport resolves hosts through a
// DNS cache.
func NewFetcher(opts ...Option) *Fetcher {
	dns := &dnscache.Resolver{}
	f := &Fetcher{
		client: &http.Client{
			Timeout:   DefaultRequestTimeout,
			Transport: newTransport(dns),
		},
		userAgent: DefaultUserAgent,
		breakers:  make(map[string]*circuit.Breaker),
		dns:       dns,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Close stops the DNS cache refresh loop. The Fetcher remains usable;
// cached addresses are simply no longer refreshed.
func (f *Fetcher) Close() error {
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

// startRefresh launches the DNS cache refresh loop once.
func (f *Fetcher) startRefresh() {
	if f.dns == nil {
		return
	}
	f.refreshOnce.Do(func() {
		f.refreshing.Store(true)
		go func() {
			defer f.refreshing.Store(false)
			ticker := time.NewTicker(dnsRefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					f.dns.Refresh(true)
				case <-f.done:
					return
				}
			}
		}()
	})
}

func newTransport(resolver *dnscache.Resolver) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var lastErr error
			for _, ip := range ips {
				conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			if lastErr == nil {
				lastErr = fmt.Errorf("no addresses for %s", host)
			}
			return nil, lastErr
		},
		MaxIdleConns:          DefaultMaxIdleConns,
		MaxIdleConnsPerHost:   DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Fetch performs a single GET and returns the response body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	breaker := f.breaker(rawURL)
	if breaker == nil {
		return f.get(ctx, rawURL)
	}

	if !breaker.Ready() {
		return nil, &FetchError{URL: rawURL, Err: ErrUpstreamDown}
	}

	// Client errors such as 404 are answers from a healthy host; only
	// transport failures and 5xx responses count against the breaker.
	var data []byte
	var clientErr error
	err := breaker.Call(func() error {
		var getErr error
		data, getErr = f.get(ctx, rawURL)
		if isClientError(getErr) {
			clientErr = getErr
			return nil
		}
		return getErr
	}, 0)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, err
		}
		// The breaker itself refused the call.
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("%w: %v", ErrUpstreamDown, err)}
	}
	if clientErr != nil {
		return nil, clientErr
	}
	return data, nil
}

// isClientError reports whether err is a 4xx response.
func isClientError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.StatusCode >= 400 && fe.StatusCode < 500
}

// FetchText performs a single GET and returns the body decoded as UTF-8.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	data, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", &FetchError{URL: rawURL, Err: errors.New("response body is not valid UTF-8")}
	}
	return string(data), nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	f.startRefresh()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: ErrNotFound}
	case resp.StatusCode != http.StatusOK:
		return nil, &FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	return data, nil
}

// breaker returns the circuit breaker for the URL's host, or nil when
// breakers are disabled.
func (f *Fetcher) breaker(rawURL string) *circuit.Breaker {
	if f.breakerThreshold <= 0 {
		return nil
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if b, ok := f.breakers[host]; ok {
		return b
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	b := circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ConsecutiveTripFunc(int64(f.breakerThreshold)),
	})
	f.breakers[host] = b
	return b
}

// BreakerStates reports "open" or "closed" for every host seen so far.
func (f *Fetcher) BreakerStates() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	states := make(map[string]string, len(f.breakers))
	for host, b := range f.breakers {
		if b.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

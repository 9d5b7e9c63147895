package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Retry defaults.
const (
	// DefaultMaxAttempts is the number of requests sent before giving up.
	DefaultMaxAttempts = 3

	// DefaultBackoff is the wait after the first failed attempt. It doubles
	// after every further failure: 1s, 2s, 4s.
	DefaultBackoff = 1 * time.Second
)

// Doer sends HTTP requests. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher issues GET requests with retry and backoff.
type Fetcher struct {
	client      Doer
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds every single attempt. Zero leaves timing to the client.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxAttempts sets the number of attempts. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		if n >= 1 {
			f.maxAttempts = n
		}
	}
}

// WithBackoff sets the initial backoff.
func WithBackoff(d time.Duration) Option {
	return func(f *Fetcher) {
		f.backoff = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher. client must not follow redirects on its own.
func New(client Doer, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      client,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		logger:      slog.Default(),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs rawURL. It returns a *NetworkError when no response could be
// obtained. A 5xx answer that survives every retry is returned as a normal
// Response, not as an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	start := time.Now()
	for attempt := 1; ; attempt++ {
		resp, err := f.do(ctx, rawURL)
		if err == nil {
			if resp.StatusCode < 500 || attempt == f.maxAttempts {
				return f.response(rawURL, resp, start, attempt), nil
			}
			f.logger.Debug("server error, retrying", "url", rawURL, "status", resp.StatusCode, "attempt", attempt)
			drain(resp.Body)
		} else {
			if !retryable(err) || attempt == f.maxAttempts {
				return nil, &NetworkError{URL: rawURL, Attempts: attempt, Err: err}
			}
			f.logger.Debug("request failed, retrying", "url", rawURL, "error", err, "attempt", attempt)
		}

		if err := f.sleep(ctx, f.backoff<<(attempt-1)); err != nil {
			return nil, &NetworkError{URL: rawURL, Attempts: attempt, Err: err}
		}
	}
}

// do sends a single attempt. The returned body releases the attempt's
// timeout context when closed.
func (f *Fetcher) do(ctx context.Context, rawURL string) (*http.Response, error) {
	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if f.timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, f.timeout)
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (f *Fetcher) response(rawURL string, resp *http.Response, start time.Time, attempts int) *Response {
	return &Response{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Header:     newHeader(resp.Header),
		Body:       resp.Body,
		Elapsed:    time.Since(start),
		Attempts:   attempts,
	}
}

// retryable reports whether a transport error is worth another attempt.
// DNS failures and cancellation by the caller are final.
func retryable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	return nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64*1024))
	_ = body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

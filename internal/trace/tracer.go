package trace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/nao1215/redirscan/internal/fetch"
	"github.com/nao1215/redirscan/internal/model"
)

// ErrLoopDetected is returned when a chain has more redirects than allowed.
var ErrLoopDetected = errors.New("redirect loop detected")

// Fetcher fetches a single URL without following redirects.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Tracer drives a Fetcher along a redirect chain.
type Tracer struct {
	fetcher        Fetcher
	maxHops        int
	includeHeaders bool
	logger         *slog.Logger
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithMaxHops overrides model.MaxHops.
func WithMaxHops(n int) Option {
	return func(t *Tracer) {
		t.maxHops = n
	}
}

// WithHeaders stores all response headers on every hop.
func WithHeaders(include bool) Option {
	return func(t *Tracer) {
		t.includeHeaders = include
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracer) {
		t.logger = logger
	}
}

// New creates a Tracer.
func New(fetcher Fetcher, opts ...Option) *Tracer {
	t := &Tracer{
		fetcher: fetcher,
		maxHops: model.MaxHops,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Trace follows initialURL to its final destination.
// Errors are fatal: ErrLoopDetected, or a fetch.NetworkError when a hop
// produced no response at all. Error responses are not errors; they end
// the chain as a final destination with the Error flag set.
func (t *Tracer) Trace(ctx context.Context, initialURL string) (*model.ChainResult, error) {
	result := &model.ChainResult{InitialURL: initialURL}
	current := initialURL
	var total time.Duration

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := t.fetcher.Fetch(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", current, err)
		}
		total += resp.Elapsed

		hop := t.hopFrom(resp, len(result.Hops)+1)
		_ = resp.Close()

		next, ok := t.redirectTarget(resp, current)
		if !ok {
			result.Final = model.FinalDestination{
				Hop:   hop,
				Error: !resp.IsSuccess(),
			}
			break
		}

		if len(result.Hops) >= t.maxHops {
			return nil, fmt.Errorf("%w: more than %d redirects starting at %s", ErrLoopDetected, t.maxHops, initialURL)
		}

		hop.Location = next
		result.Hops = append(result.Hops, hop)
		if !result.HTTPSUpgraded && schemeOf(current) == "http" && schemeOf(next) == "https" {
			result.HTTPSUpgraded = true
		}
		t.logger.Debug("redirect", "step", hop.Step, "status", hop.StatusCode, "url", current, "location", next)
		current = next
	}

	result.HopCount = len(result.Hops)
	result.TotalElapsedMs = total.Milliseconds()
	t.logger.Debug("trace finished", "url", initialURL, "hops", result.HopCount, "final", result.Final.URL, "status", result.Final.StatusCode)
	return result, nil
}

// redirectTarget returns the absolute redirect target of resp. It reports
// false when resp is not a redirect or its Location cannot be followed.
func (t *Tracer) redirectTarget(resp *fetch.Response, current string) (string, bool) {
	if !resp.IsRedirect() {
		return "", false
	}
	base, err := url.Parse(current)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.logger.Debug("unparsable Location header", "url", current, "error", err)
		return "", false
	}
	next := base.ResolveReference(ref)
	if next.Scheme != "http" && next.Scheme != "https" {
		t.logger.Debug("redirect to unsupported scheme", "url", current, "scheme", next.Scheme)
		return "", false
	}
	if next.Host == "" {
		t.logger.Debug("redirect target has no host", "url", current, "location", resp.Header.Get("Location"))
		return "", false
	}
	return next.String(), true
}

func (t *Tracer) hopFrom(resp *fetch.Response, step int) model.Hop {
	hop := model.Hop{
		Step:        step,
		StatusCode:  resp.StatusCode,
		URL:         resp.URL,
		ElapsedMs:   resp.Elapsed.Milliseconds(),
		Server:      resp.Header.Get("Server"),
		ContentType: resp.Header.Get("Content-Type"),
	}
	if t.includeHeaders {
		hop.Headers = resp.Header.Map()
	}
	return hop
}

func schemeOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Scheme
}

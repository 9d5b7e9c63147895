package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/nao1215/redirscan/internal/config"
)

// checkProxyTimeout bounds the TCP reachability check of the proxy.
const checkProxyTimeout = 2 * time.Second

// HostConfigFunc returns request settings for a host.
type HostConfigFunc func(host string) config.HostConfig

// Options configures a Client.
type Options struct {
	// ProxyURL is a socks5://, socks5h://, http:// or https:// proxy. Empty means direct.
	ProxyURL string

	// UserAgent is sent unless the host config overrides it.
	UserAgent string

	// RateLimit is the per-host request rate in requests per second. Zero disables it.
	RateLimit float64

	// HostConfig supplies per-host headers and cookies. May be nil.
	HostConfig HostConfigFunc

	// TLSConfig overrides the TLS settings of hop fetches. Nil uses the
	// system defaults with certificate verification enabled.
	TLSConfig *tls.Config
}

// Client provides the HTTP and raw dialing capabilities used by the tracer
// and the enrichers. It is safe for concurrent use.
type Client struct {
	proxyURL   *url.URL
	dialer     proxy.Dialer
	userAgent  string
	rateLimit  float64
	hostConfig HostConfigFunc
	tlsConfig  *tls.Config

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient creates a new Client. It validates the proxy URL but does not
// connect to it; call CheckProxy to verify reachability.
func NewClient(opts Options) (*Client, error) {
	c := &Client{
		dialer:     &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second},
		userAgent:  opts.UserAgent,
		rateLimit:  opts.RateLimit,
		hostConfig: opts.HostConfig,
		tlsConfig:  opts.TLSConfig,
		limiters:   make(map[string]*rate.Limiter),
	}
	if c.userAgent == "" {
		c.userAgent = config.DefaultUserAgent
	}

	if opts.ProxyURL == "" {
		return c, nil
	}

	u, err := url.Parse(opts.ProxyURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProxy, opts.ProxyURL)
	}
	c.proxyURL = u

	switch u.Scheme {
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		c.dialer = dialer
	case "http", "https":
		// handled by http.Transport.Proxy
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxy, u.Scheme)
	}
	return c, nil
}

// NewHTTPClient creates an HTTP client that never follows redirects.
// timeout bounds a single request including reading the body.
func (c *Client) NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext:         c.DialContext,
		TLSClientConfig:     c.tlsConfig,
		TLSHandshakeTimeout: timeout,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}
	if c.proxyURL != nil && (c.proxyURL.Scheme == "http" || c.proxyURL.Scheme == "https") {
		transport.Proxy = http.ProxyURL(c.proxyURL)
	}

	var rt http.RoundTripper = &headerInjectingTransport{
		base:       transport,
		userAgent:  c.userAgent,
		hostConfig: c.hostConfig,
	}
	if c.rateLimit > 0 {
		rt = &rateLimitedTransport{base: rt, client: c}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   timeout,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// DialContext establishes a TCP connection, through the SOCKS5 proxy when
// one is configured.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Limiter returns the rate limiter for host, creating it on first use.
func (c *Client) Limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limiter, exists := c.limiters[host]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(c.rateLimit), 1)
	c.limiters[host] = limiter
	return limiter
}

// CheckProxy verifies that the configured proxy accepts TCP connections.
// It returns nil when no proxy is configured.
func (c *Client) CheckProxy(ctx context.Context) error {
	if c.proxyURL == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyURL.Host)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrProxyUnreachable, c.proxyURL.Host, err)
	}
	return conn.Close()
}

// headerInjectingTransport wraps an http.RoundTripper to inject the
// User-Agent plus per-host headers and cookies into every request.
type headerInjectingTransport struct {
	base       http.RoundTripper
	userAgent  string
	hostConfig HostConfigFunc
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)

	if t.hostConfig != nil {
		hc := t.hostConfig(req.URL.Hostname())
		if hc.UserAgent != "" {
			clone.Header.Set("User-Agent", hc.UserAgent)
		}
		if hc.Cookie != "" {
			if existing := clone.Header.Get("Cookie"); existing != "" {
				clone.Header.Set("Cookie", existing+"; "+hc.Cookie)
			} else {
				clone.Header.Set("Cookie", hc.Cookie)
			}
		}
		for key, value := range hc.Headers {
			clone.Header.Set(key, value)
		}
	}

	return t.base.RoundTrip(clone)
}

// rateLimitedTransport waits on the per-host limiter before each request.
type rateLimitedTransport struct {
	base   http.RoundTripper
	client *Client
}

// RoundTrip implements http.RoundTripper.
func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.client.Limiter(req.URL.Hostname()).Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

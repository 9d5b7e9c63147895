package model

import "net/url"

// MaxHops is the maximum number of redirects followed before a trace is
// aborted as a loop.
const MaxHops = 10

// Hop is one redirect step: a response carrying a 3xx status and a Location header.
type Hop struct {
	// Step is the 1-based position of the hop in the chain.
	Step int `json:"step"`

	// StatusCode is the HTTP status of the redirect response.
	StatusCode int `json:"status_code"`

	// URL is the URL that was requested and answered with the redirect.
	URL string `json:"url"`

	// Location is the absolute redirect target resolved against URL.
	Location string `json:"location,omitempty"`

	// ElapsedMs is the wall time of the request including retries.
	ElapsedMs int64 `json:"time_ms"`

	// Server is the Server response header, if any.
	Server string `json:"server,omitempty"`

	// ContentType is the Content-Type response header, if any.
	ContentType string `json:"content_type,omitempty"`

	// Headers holds all response headers when header capture is enabled.
	Headers map[string]string `json:"headers,omitempty"`
}

// Scheme returns the URL scheme of the hop, or "" when the URL is malformed.
func (h Hop) Scheme() string {
	return schemeOf(h.URL)
}

// FinalDestination is the terminal, non-redirect response that ended a trace.
type FinalDestination struct {
	Hop

	// ContentAnalysis is set when the content analyzer ran successfully.
	ContentAnalysis *ContentAnalysis `json:"content_analysis,omitempty"`

	// Error is true when the final response is not 2xx.
	Error bool `json:"error,omitempty"`
}

// ChainResult is the outcome of tracing one URL.
// It is built once by the tracer and not mutated afterwards, except that
// DNSInfo and FinalDestination.ContentAnalysis are attached by the enricher
// before the result is handed to anyone else.
type ChainResult struct {
	// InitialURL is the URL the trace started from.
	InitialURL string `json:"initial_url"`

	// Hops is the redirect chain in traversal order.
	Hops []Hop `json:"redirect_chain"`

	// Final is the terminal response.
	Final FinalDestination `json:"final_destination"`

	// TotalElapsedMs is the sum of all request times including retries.
	TotalElapsedMs int64 `json:"total_time_ms"`

	// HopCount is the number of redirects followed; always len(Hops).
	HopCount int `json:"total_redirects"`

	// HTTPSUpgraded is true once an http:// request redirected to https://.
	HTTPSUpgraded bool `json:"https_upgraded"`

	// DNSInfo is set when DNS resolution of the final host succeeded.
	DNSInfo *DNSInfo `json:"dns_info,omitempty"`
}

// URLSequence returns the traversed URLs in order: the initial URL, every
// hop target and the final destination, without consecutive duplicates.
func (c *ChainResult) URLSequence() []string {
	seq := make([]string, 0, len(c.Hops)+2)
	push := func(u string) {
		if u == "" {
			return
		}
		if n := len(seq); n > 0 && seq[n-1] == u {
			return
		}
		seq = append(seq, u)
	}
	push(c.InitialURL)
	for _, hop := range c.Hops {
		push(hop.URL)
	}
	push(c.Final.URL)
	return seq
}

// FinalHost returns the host name of the final destination without port.
func (c *ChainResult) FinalHost() string {
	u, err := url.Parse(c.Final.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func schemeOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Scheme
}

package fetch

import (
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// HeaderField is a single response header line.
type HeaderField struct {
	Name  string
	Value string
}

// Header is an ordered, case-insensitive list of response headers.
// Fields are sorted by canonical name; multiple values keep their order.
type Header []HeaderField

// newHeader converts an http.Header into a Header.
func newHeader(h http.Header) Header {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make(Header, 0, len(names))
	for _, name := range names {
		for _, value := range h[name] {
			fields = append(fields, HeaderField{Name: http.CanonicalHeaderKey(name), Value: value})
		}
	}
	return fields
}

// Get returns the first value for name, matched case-insensitively.
func (h Header) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Values returns all values for name, matched case-insensitively.
func (h Header) Values(name string) []string {
	var values []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}
	return values
}

// Map flattens the header into a map, joining repeated values with ", ".
func (h Header) Map() map[string]string {
	if len(h) == 0 {
		return nil
	}
	m := make(map[string]string, len(h))
	for _, f := range h {
		if existing, ok := m[f.Name]; ok {
			m[f.Name] = existing + ", " + f.Value
			continue
		}
		m[f.Name] = f.Value
	}
	return m
}

// HTTP returns the header as an http.Header.
func (h Header) HTTP() http.Header {
	out := make(http.Header, len(h))
	for _, f := range h {
		out.Add(f.Name, f.Value)
	}
	return out
}

// Response is the answer to a single fetch.
type Response struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Header holds the response headers.
	Header Header

	// Body is read lazily. The caller must close it.
	Body io.ReadCloser

	// Elapsed is the time spent on this fetch including retries and backoff.
	Elapsed time.Duration

	// Attempts is the number of requests sent.
	Attempts int
}

// IsRedirect reports whether the response is a 3xx carrying a Location header.
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400 && r.Header.Get("Location") != ""
}

// IsSuccess reports whether the status is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Close discards and closes the body.
func (r *Response) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// cancelOnClose releases the per-attempt context when the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel func()
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

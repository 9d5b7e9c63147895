// Package transport builds the outbound HTTP client used for every hop fetch.
//
// The client never follows redirects on its own: a 3xx answer is handed back
// to the caller so the tracer can record it. Requests optionally go through a
// SOCKS5 or HTTP proxy, receive per-host headers and cookies from the config
// file, and are rate limited per host.
package transport

// Package fetch issues single HTTP GET requests with redirect following
// disabled, retrying transient failures with exponential backoff.
//
// A request is retried when the server answers 5xx or when no response could
// be obtained at the connection level. 4xx answers and DNS resolution
// failures are returned immediately. Redirects are never followed: a 3xx
// answer is an ordinary Response for the caller to interpret.
package fetch

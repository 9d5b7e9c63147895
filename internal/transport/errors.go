package transport

import "errors"

var (
	// ErrInvalidProxy is returned when the proxy URL cannot be used.
	ErrInvalidProxy = errors.New("invalid proxy URL")

	// ErrProxyUnreachable is returned by CheckProxy when no TCP connection
	// to the proxy could be established.
	ErrProxyUnreachable = errors.New("cannot connect to proxy")
)

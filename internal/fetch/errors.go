package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkFailure matches every *NetworkError via errors.Is.
	ErrNetworkFailure = errors.New("network failure")

	// ErrInvalidURL is returned for URLs that cannot be parsed or lack a host.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnsupportedScheme is returned for schemes other than http and https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

// NetworkError reports that no response could be obtained for URL.
type NetworkError struct {
	// URL is the requested URL.
	URL string

	// Attempts is the number of requests sent before giving up.
	Attempts int

	// Err is the error of the last attempt.
	Err error
}

// Error implements error.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure fetching %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrNetworkFailure.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetworkFailure
}

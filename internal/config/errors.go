package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can branch on
// them with errors.Is().
var (
	// ErrNoTarget is returned when no URL was given on the command line or
	// through --batch.
	ErrNoTarget = errors.New("no target specified: provide a URL or use --list")

	// ErrInvalidTimeout is returned when the per-hop timeout is outside 1-30 seconds.
	ErrInvalidTimeout = errors.New("invalid timeout: must be between 1 and 30 seconds")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrUnknownExportFormat is returned for an export format other than
	// none, json, csv, diagram or markdown.
	ErrUnknownExportFormat = errors.New("unknown export format")

	// ErrInvalidRateLimit is returned when the per-host rate limit is negative.
	// Zero disables rate limiting.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the content body cap is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidTargetURL is returned when a target cannot be parsed as an absolute URL.
	ErrInvalidTargetURL = errors.New("invalid target URL")

	// ErrUnsupportedScheme is returned when a target uses a scheme other than http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme: only http and https are allowed")

	// ErrInvalidProxy is returned when the proxy URL is not socks5://, http:// or https://.
	ErrInvalidProxy = errors.New("invalid proxy URL: expected socks5://, http:// or https://")
)

// Package log provides secure logging built on top of the standard slog package.
//
// The SecureHandler masks sensitive attribute values before they reach the
// underlying handler:
//   - HTTP headers and cookies (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Values matching secret patterns (JWT, bearer and basic credentials, AWS keys)
//   - Query parameter values of traced URLs whose names look like credentials
//     (token, key, sig, password, session, code)
//
// Redirect chains routinely carry one-time tokens and signed parameters in
// their URLs, so URL attributes keep their shape but lose those values:
//
//	logger := log.NewSecureLogger(os.Stderr, true)
//	logger.Info("hop", "url", "https://example.com/cb?code=abc&utm_source=x")
//	// url=https://example.com/cb?code=***REDACTED***&utm_source=x
package log

package enrich

import "errors"

var (
	// ErrNoRecords is returned when a host has no A or AAAA records.
	ErrNoRecords = errors.New("no address records")

	// ErrNoNameservers is returned when no DNS server is configured.
	ErrNoNameservers = errors.New("no DNS servers available")

	// ErrNotHTTPS is returned when certificate inspection is asked for a non-https URL.
	ErrNotHTTPS = errors.New("not an https URL")

	// ErrNoPeerCertificate is returned when the TLS peer presented no certificate.
	ErrNoPeerCertificate = errors.New("no peer certificate")

	// ErrNotHTML is returned when the content analyzer receives a non-HTML answer.
	ErrNotHTML = errors.New("not an HTML document")
)

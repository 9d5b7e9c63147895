package model

import "time"

// DNSInfo holds forward and reverse DNS records for the final host.
type DNSInfo struct {
	// Host is the resolved host name.
	Host string `json:"host"`

	// IPs lists A and AAAA records in answer order.
	IPs []string `json:"ips"`

	// CNAMEs lists the canonical name chain, if any.
	CNAMEs []string `json:"cnames,omitempty"`

	// Reverse holds PTR names per IP. IPs without PTR records are omitted.
	Reverse []ReverseRecord `json:"reverse,omitempty"`
}

// ReverseRecord is the PTR lookup result for one IP.
type ReverseRecord struct {
	IP    string   `json:"ip"`
	Names []string `json:"names"`
}

// CertificateInfo is the observed leaf certificate of the final host.
// It is collected without trust validation and is informational only.
type CertificateInfo struct {
	// Subject is the certificate subject distinguished name.
	Subject string `json:"subject"`

	// Issuer is the issuer distinguished name.
	Issuer string `json:"issuer"`

	// ValidFrom is the NotBefore timestamp.
	ValidFrom time.Time `json:"valid_from"`

	// ValidTo is the NotAfter timestamp.
	ValidTo time.Time `json:"valid_to"`

	// Fingerprint is the SHA-256 fingerprint as colon separated hex.
	Fingerprint string `json:"fingerprint"`

	// Serial is the serial number as colon separated hex.
	Serial string `json:"serial"`

	// DaysRemaining is (ValidTo - inspection time) in whole days.
	// Negative for expired certificates.
	DaysRemaining int `json:"days_remaining"`

	// DNSNames lists the Subject Alternative Names.
	DNSNames []string `json:"dns_names,omitempty"`

	// SelfSigned is true when subject and issuer are identical.
	SelfSigned bool `json:"self_signed"`

	// TLSVersion is the negotiated protocol version, e.g. "TLS 1.3".
	TLSVersion string `json:"tls_version,omitempty"`
}

// Expired reports whether the certificate validity has ended.
func (c *CertificateInfo) Expired() bool {
	return c.DaysRemaining < 0
}

// ContentAnalysis holds pattern-based findings from the final HTML page.
type ContentAnalysis struct {
	HasScripts        bool `json:"has_scripts"`
	HasIframes        bool `json:"has_iframes"`
	HasObfuscation    bool `json:"has_obfuscation"`
	HasClientRedirect bool `json:"has_client_redirect"`
	HasHiddenElements bool `json:"has_hidden_elements"`

	// ExternalResources lists up to 20 unique absolute src/href URLs.
	ExternalResources []string `json:"external_resources,omitempty"`

	// Title is the text of the first <title> element.
	Title string `json:"title,omitempty"`

	// Forms is the number of <form> tags.
	Forms int `json:"forms"`

	// Technologies lists fingerprinted web technologies, sorted.
	Technologies []string `json:"technologies,omitempty"`

	// BodyHash is the murmur3 hash of the scanned body.
	BodyHash int32 `json:"body_hash"`

	// BodySize is the number of bytes scanned.
	BodySize int `json:"body_size"`

	// Truncated is true when the body exceeded the size cap.
	Truncated bool `json:"truncated,omitempty"`
}

// Flags returns the names of all content findings that are set, in a fixed order.
func (c *ContentAnalysis) Flags() []string {
	var flags []string
	if c.HasScripts {
		flags = append(flags, "scripts")
	}
	if c.HasIframes {
		flags = append(flags, "iframes")
	}
	if c.HasObfuscation {
		flags = append(flags, "obfuscation")
	}
	if c.HasClientRedirect {
		flags = append(flags, "client-side redirect")
	}
	if c.HasHiddenElements {
		flags = append(flags, "hidden elements")
	}
	return flags
}

package model

// TrackingParameter is one tracking query parameter found in the chain.
type TrackingParameter struct {
	// Param is the parameter name as it appeared in the URL.
	Param string `json:"param"`

	// Value is the parameter value truncated to 50 characters.
	Value string `json:"value"`

	// URL is the URL the parameter was found in.
	URL string `json:"url"`
}

// SecurityAnalysis is the output of the heuristics engine.
type SecurityAnalysis struct {
	// SuspiciousIndicators is an ordered set of indicator messages.
	SuspiciousIndicators []string `json:"suspicious_indicators"`

	// TrackingParameters lists every match per URL; repeats across hops are kept.
	TrackingParameters []TrackingParameter `json:"tracking_parameters"`

	// CertificateInfo is set when certificate inspection succeeded.
	CertificateInfo *CertificateInfo `json:"certificate_info,omitempty"`

	// ContentAnalysis is set when the content analyzer succeeded.
	ContentAnalysis *ContentAnalysis `json:"content_analysis,omitempty"`

	// IDNHosts lists internationalized hosts seen in the chain.
	IDNHosts []IDNHost `json:"idn_hosts,omitempty"`
}

// IDNHost is an internationalized host in both of its forms.
type IDNHost struct {
	ASCII   string `json:"ascii"`
	Unicode string `json:"unicode"`
}

// HasIndicators reports whether any suspicious indicator was raised.
func (s *SecurityAnalysis) HasIndicators() bool {
	return len(s.SuspiciousIndicators) > 0
}

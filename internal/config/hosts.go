package config

import "strings"

// HostConfig holds request settings applied to every request sent to one host.
type HostConfig struct {
	// Cookie is a raw cookie string, e.g. "name1=value1; name2=value2".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers included in requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the global User-Agent for this host.
	UserAgent string `yaml:"userAgent,omitempty"`
}

// File represents the structure of the .redirscan configuration file.
type File struct {
	// Hosts maps host names (without port) to their request settings.
	Hosts map[string]HostConfig `yaml:"hosts,omitempty"`

	// Defaults applies to every host unless overridden in Hosts.
	Defaults HostConfig `yaml:"defaults,omitempty"`

	// AlertWebhook is used when --alert-webhook is not given.
	AlertWebhook string `yaml:"alertWebhook,omitempty"`

	// Proxy is used when --proxy is not given.
	Proxy string `yaml:"proxy,omitempty"`

	// ExtraShorteners extends the built-in URL shortener list.
	ExtraShorteners []string `yaml:"extraShorteners,omitempty"`

	// ExtraSuspiciousTLDs extends the built-in suspicious TLD list.
	ExtraSuspiciousTLDs []string `yaml:"extraSuspiciousTLDs,omitempty"`
}

// GetHostConfig returns the configuration for host merged onto the defaults.
// Host lookup is case-insensitive.
func (cf *File) GetHostConfig(host string) HostConfig {
	result := HostConfig{
		Cookie:    cf.Defaults.Cookie,
		UserAgent: cf.Defaults.UserAgent,
	}
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	hostConfig, ok := cf.Hosts[strings.ToLower(host)]
	if !ok {
		return result
	}
	if hostConfig.Cookie != "" {
		result.Cookie = hostConfig.Cookie
	}
	if hostConfig.UserAgent != "" {
		result.UserAgent = hostConfig.UserAgent
	}
	if len(hostConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range hostConfig.Headers {
			result.Headers[k] = v
		}
	}
	return result
}

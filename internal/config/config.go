package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "redirscan"

	// DefaultTimeout bounds every single hop request.
	DefaultTimeout = 10 * time.Second

	// MinTimeout and MaxTimeout are the accepted bounds for the per-hop timeout.
	MinTimeout = 1 * time.Second
	MaxTimeout = 30 * time.Second

	// DefaultBatchSize is the number of URLs traced concurrently in batch mode.
	DefaultBatchSize = 5

	// DefaultRateLimit is the number of requests per second allowed against a
	// single host. Redirect chains often bounce through the same shortener.
	DefaultRateLimit = 5.0

	// DefaultUserAgent identifies redirscan in HTTP requests.
	DefaultUserAgent = "redirscan/1.0 (+https://github.com/nao1215/redirscan)"

	// DefaultMaxBodySize caps the body read by the content analyzer.
	DefaultMaxBodySize = 1024 * 1024 // 1MB

	// DefaultExportFormat renders only the inline summary.
	DefaultExportFormat = ExportNone
)

// Export format names accepted by --format.
const (
	ExportNone     = "none"
	ExportJSON     = "json"
	ExportCSV      = "csv"
	ExportDiagram  = "diagram"
	ExportMarkdown = "markdown"
)

// exportAliases maps alternative spellings to canonical format names.
var exportAliases = map[string]string{
	"":           ExportNone,
	"structured": ExportJSON,
	"mermaid":    ExportDiagram,
	"md":         ExportMarkdown,
}

// ExportFormats lists the canonical export format names.
var ExportFormats = []string{ExportNone, ExportJSON, ExportCSV, ExportDiagram, ExportMarkdown}

// NormalizeExportFormat returns the canonical export format name for s.
func NormalizeExportFormat(s string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := exportAliases[f]; ok {
		f = alias
	}
	if !slices.Contains(ExportFormats, f) {
		return "", fmt.Errorf("%w: %q", ErrUnknownExportFormat, s)
	}
	return f, nil
}

// Config holds all runtime options for a trace run.
// It is populated from CLI flags, merged with the optional config file,
// and passed through the application explicitly.
type Config struct {
	// Targets is the list of URLs to trace.
	Targets []string

	// Timeout bounds every hop fetch. Must be within MinTimeout..MaxTimeout.
	Timeout time.Duration

	// Deep enables the content analyzer and certificate inspection.
	Deep bool

	// IncludeHeaders stores the response headers of every hop in the result.
	IncludeHeaders bool

	// ExportFormat selects the artifact written besides the inline summary.
	ExportFormat string

	// OutputFile is where the export artifact is written. Empty writes a
	// timestamped file under <data dir>/exports.
	OutputFile string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool

	// NoColor disables colored summary output.
	NoColor bool

	// BatchSize is the number of URLs traced concurrently.
	BatchSize int

	// RateLimit is the per-host request rate in requests per second.
	// Zero disables rate limiting.
	RateLimit float64

	// ProxyURL routes all requests through a SOCKS5 or HTTP proxy.
	ProxyURL string

	// AlertWebhook receives a POST when a trace yields suspicious indicators.
	AlertWebhook string

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize caps the body read by the content analyzer.
	MaxBodySize int64

	// ConfigFilePath is the explicit path given with --config.
	ConfigFilePath string

	// File holds host-specific settings loaded from the config file.
	File *File

	// SaveToDB archives every finished analysis into the SQLite database.
	SaveToDB bool

	// DBDir is the directory holding the archive database.
	DBDir string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:      DefaultTimeout,
		ExportFormat: DefaultExportFormat,
		BatchSize:    DefaultBatchSize,
		RateLimit:    DefaultRateLimit,
		UserAgent:    DefaultUserAgent,
		MaxBodySize:  DefaultMaxBodySize,
		DBDir:        XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for redirscan.
// On Linux: ~/.local/share/redirscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for redirscan.
// On Linux: ~/.config/redirscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found. ExportFormat is normalized in place.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	for _, target := range c.Targets {
		if err := ValidateTargetURL(target); err != nil {
			return err
		}
	}

	if c.Timeout < MinTimeout || c.Timeout > MaxTimeout {
		return ErrInvalidTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	format, err := NormalizeExportFormat(c.ExportFormat)
	if err != nil {
		return err
	}
	c.ExportFormat = format

	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.ProxyURL != "" {
		u, err := url.Parse(c.ProxyURL)
		if err != nil || u.Host == "" {
			return ErrInvalidProxy
		}
		switch u.Scheme {
		case "socks5", "socks5h", "http", "https":
		default:
			return ErrInvalidProxy
		}
	}

	return nil
}

// ValidateTargetURL rejects anything that is not an absolute http(s) URL.
func ValidateTargetURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTargetURL, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		if u.Scheme == "" {
			return fmt.Errorf("%w: %s", ErrInvalidTargetURL, raw)
		}
		return fmt.Errorf("%w: %s", ErrUnsupportedScheme, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidTargetURL, raw)
	}
	return nil
}

// HostConfig returns the merged request settings for host.
// It returns the zero value when no config file was loaded.
func (c *Config) HostConfig(host string) HostConfig {
	if c.File == nil {
		return HostConfig{}
	}
	return c.File.GetHostConfig(host)
}

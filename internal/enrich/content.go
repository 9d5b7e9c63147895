package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"

	wappalyzer "github.com/projectdiscovery/wappalyzergo"
	"github.com/twmb/murmur3"

	"github.com/nao1215/redirscan/internal/model"
)

const (
	// DefaultMaxBodySize caps the bytes read from the final page.
	DefaultMaxBodySize = 1 << 20

	// maxExternalResources caps ContentAnalysis.ExternalResources.
	maxExternalResources = 20
)

// contentPattern is a named regular expression over the page body.
type contentPattern struct {
	name    string
	pattern *regexp.Regexp
	set     func(*model.ContentAnalysis)
}

var contentPatterns = []contentPattern{
	{
		name:    "scripts",
		pattern: regexp.MustCompile(`(?i)<script\b`),
		set:     func(c *model.ContentAnalysis) { c.HasScripts = true },
	},
	{
		name:    "iframes",
		pattern: regexp.MustCompile(`(?i)<iframe\b`),
		set:     func(c *model.ContentAnalysis) { c.HasIframes = true },
	},
	{
		name:    "obfuscation",
		pattern: regexp.MustCompile(`(?i)\beval\s*\(|\bunescape\s*\(|\batob\s*\(|String\.fromCharCode\s*\(`),
		set:     func(c *model.ContentAnalysis) { c.HasObfuscation = true },
	},
	{
		name: "client redirect",
		pattern: regexp.MustCompile(
			`(?i)window\.location|document\.location|location\.(?:href|replace|assign)|<meta[^>]+http-equiv\s*=\s*["']?refresh`),
		set: func(c *model.ContentAnalysis) { c.HasClientRedirect = true },
	},
	{
		name:    "hidden elements",
		pattern: regexp.MustCompile(`(?i)display\s*:\s*none|visibility\s*:\s*hidden|opacity\s*:\s*0(?:[^.\d]|$)`),
		set:     func(c *model.ContentAnalysis) { c.HasHiddenElements = true },
	},
}

// ContentAnalyzer fetches a page once and scans it with fixed patterns.
type ContentAnalyzer struct {
	client      *http.Client
	maxBodySize int64

	wappOnce sync.Once
	wapp     *wappalyzer.Wappalyze
	wappErr  error
}

// NewContentAnalyzer creates a ContentAnalyzer. maxBodySize <= 0 uses DefaultMaxBodySize.
func NewContentAnalyzer(client *http.Client, maxBodySize int64) *ContentAnalyzer {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &ContentAnalyzer{client: client, maxBodySize: maxBodySize}
}

// Analyze performs a GET on rawURL and scans at most maxBodySize bytes.
// A read error after some bytes arrived yields a partial analysis.
func (a *ContentAnalyzer) Analyze(ctx context.Context, rawURL string) (*model.ContentAnalysis, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("content fetch of %s returned %d", rawURL, resp.StatusCode)
	}
	if !IsHTML(resp.Header.Get("Content-Type")) {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, resp.Header.Get("Content-Type"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBodySize+1))
	if err != nil && len(body) == 0 {
		return nil, err
	}
	truncated := int64(len(body)) > a.maxBodySize
	if truncated {
		body = body[:a.maxBodySize]
	}

	analysis := ScanContent(body, resp.Request.URL)
	analysis.Truncated = truncated
	analysis.Technologies = a.technologies(resp.Header, body)
	return analysis, nil
}

// technologies fingerprints the page. The fingerprint database is loaded once.
func (a *ContentAnalyzer) technologies(header http.Header, body []byte) []string {
	a.wappOnce.Do(func() {
		a.wapp, a.wappErr = wappalyzer.New()
	})
	if a.wappErr != nil || a.wapp == nil {
		return nil
	}
	found := a.wapp.Fingerprint(header, body)
	if len(found) == 0 {
		return nil
	}
	techs := make([]string, 0, len(found))
	for name := range found {
		techs = append(techs, name)
	}
	sort.Strings(techs)
	return techs
}

// ScanContent applies the content patterns to body and extracts the title,
// form count and external resources from its DOM. base is the page URL, used
// to tell external resources from same-host ones; it may be nil.
func ScanContent(body []byte, base *url.URL) *model.ContentAnalysis {
	analysis := &model.ContentAnalysis{
		BodySize: len(body),
		BodyHash: int32(murmur3.Sum32(body)), //nolint:gosec // shodan-style signed mmh3
	}
	for _, p := range contentPatterns {
		if p.pattern.Match(body) {
			p.set(analysis)
		}
	}
	doc := parseDocument(body, base)
	analysis.Title = doc.title
	analysis.Forms = doc.forms
	analysis.ExternalResources = doc.resources
	return analysis
}

// IsHTML reports whether a Content-Type names an HTML document.
func IsHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

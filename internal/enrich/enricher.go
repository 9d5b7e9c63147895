package enrich

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/redirscan/internal/model"
)

// Resolver resolves DNS records for a host.
type Resolver interface {
	Resolve(ctx context.Context, host string) (*model.DNSInfo, error)
}

// CertificateSource returns the observed certificate of an https URL.
type CertificateSource interface {
	Inspect(ctx context.Context, rawURL string) (*model.CertificateInfo, error)
}

// PageAnalyzer scans the page at a URL.
type PageAnalyzer interface {
	Analyze(ctx context.Context, rawURL string) (*model.ContentAnalysis, error)
}

// Result holds the enrichment outcomes. Any field may be nil.
type Result struct {
	DNS         *model.DNSInfo
	Certificate *model.CertificateInfo
	Content     *model.ContentAnalysis
}

// Enricher runs the enrichments for a chain's final destination.
type Enricher struct {
	resolver Resolver
	certs    CertificateSource
	pages    PageAnalyzer
	logger   *slog.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithLogger sets the logger used for enrichment failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEnricher creates an Enricher. Nil sources disable the matching enrichment.
func NewEnricher(resolver Resolver, certs CertificateSource, pages PageAnalyzer, opts ...Option) *Enricher {
	e := &Enricher{
		resolver: resolver,
		certs:    certs,
		pages:    pages,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich runs DNS always and, in deep mode, certificate inspection for https
// finals and content analysis for successful HTML finals. The enrichments run
// concurrently; a failed one leaves its field nil.
func (e *Enricher) Enrich(ctx context.Context, chain *model.ChainResult, deep bool) Result {
	var result Result
	if chain == nil {
		return result
	}
	final := chain.Final.URL
	host := chain.FinalHost()

	g, gctx := errgroup.WithContext(ctx)

	if e.resolver != nil && host != "" {
		g.Go(func() error {
			info, err := e.resolver.Resolve(gctx, host)
			if err != nil {
				e.logger.Debug("dns enrichment failed", "host", host, "error", err)
				return nil
			}
			result.DNS = info
			return nil
		})
	}

	if deep && e.certs != nil && isHTTPS(final) {
		g.Go(func() error {
			cert, err := e.certs.Inspect(gctx, final)
			if err != nil {
				e.logger.Debug("certificate enrichment failed", "url", final, "error", err)
				return nil
			}
			result.Certificate = cert
			return nil
		})
	}

	if deep && e.pages != nil && !chain.Final.Error && IsHTML(chain.Final.ContentType) {
		g.Go(func() error {
			content, err := e.pages.Analyze(gctx, final)
			if err != nil {
				e.logger.Debug("content enrichment failed", "url", final, "error", err)
				return nil
			}
			result.Content = content
			return nil
		})
	}

	_ = g.Wait() // goroutines never return errors
	return result
}

// Apply attaches DNS and content results to the chain.
func (r Result) Apply(chain *model.ChainResult) {
	if chain == nil {
		return
	}
	chain.DNSInfo = r.DNS
	chain.Final.ContentAnalysis = r.Content
}

func isHTTPS(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && strings.EqualFold(u.Scheme, "https")
}

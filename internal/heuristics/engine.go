package heuristics

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"github.com/nao1215/redirscan/internal/model"
)

// Engine evaluates a rule table against traced chains. It holds no
// per-analysis state and is safe for concurrent use.
type Engine struct {
	rules      []Rule
	weights    map[string]int
	shorteners map[string]bool
	tlds       map[string]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtraShorteners adds registrable domains to the shortener list.
func WithExtraShorteners(domains ...string) Option {
	return func(e *Engine) {
		for _, d := range domains {
			e.shorteners[strings.ToLower(strings.TrimSpace(d))] = true
		}
	}
}

// WithExtraSuspiciousTLDs adds top-level domains to the suspicious list.
func WithExtraSuspiciousTLDs(tlds ...string) Option {
	return func(e *Engine) {
		for _, tld := range tlds {
			e.tlds[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tld), "."))] = true
		}
	}
}

// WithRules replaces the default rule table.
func WithRules(rules []Rule) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

// NewEngine creates an Engine with the default rule table and lists.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rules:      DefaultRules(),
		shorteners: toSet(shortenerDomains),
		tlds:       toSet(suspiciousTLDs),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.weights = make(map[string]int, len(e.rules))
	for _, r := range e.rules {
		e.weights[r.Message] = r.Weight
	}
	return e
}

// Analyze computes the security analysis of chain. cert and content are the
// optional enrichment results and are attached as given.
func (e *Engine) Analyze(chain *model.ChainResult, cert *model.CertificateInfo, content *model.ContentAnalysis) *model.SecurityAnalysis {
	in := e.input(chain)

	indicators := []string{}
	seen := make(map[string]bool, len(e.rules))
	for _, rule := range e.rules {
		if seen[rule.Message] || !rule.Predicate(in) {
			continue
		}
		seen[rule.Message] = true
		indicators = append(indicators, rule.Message)
	}

	return &model.SecurityAnalysis{
		SuspiciousIndicators: indicators,
		TrackingParameters:   in.Tracking,
		CertificateInfo:      cert,
		ContentAnalysis:      content,
		IDNHosts:             idnHosts(in.URLs),
	}
}

// Score sums the weights of indicators. Unknown indicators weigh nothing.
func (e *Engine) Score(indicators []string) int {
	score := 0
	for _, indicator := range indicators {
		score += e.weights[indicator]
	}
	return score
}

// Level returns the risk level of indicators.
func (e *Engine) Level(indicators []string) model.RiskLevel {
	return model.RiskLevelForScore(e.Score(indicators))
}

// Evaluate fills the security analysis and risk fields of report.
func (e *Engine) Evaluate(report *model.Report, cert *model.CertificateInfo, content *model.ContentAnalysis) {
	report.Security = e.Analyze(report.Chain, cert, content)
	report.RiskScore = e.Score(report.Security.SuspiciousIndicators)
	report.RiskLevel = model.RiskLevelForScore(report.RiskScore)
}

func (e *Engine) input(chain *model.ChainResult) *Input {
	in := &Input{
		Chain:      chain,
		Tracking:   TrackingParameters(chain),
		shorteners: e.shorteners,
		tlds:       e.tlds,
	}
	for _, raw := range chain.URLSequence() {
		if u, err := url.Parse(raw); err == nil {
			in.URLs = append(in.URLs, u)
		}
	}
	return in
}

// idnHosts lists the distinct internationalized hosts of urls with their
// Unicode form, in order of appearance.
func idnHosts(urls []*url.URL) []model.IDNHost {
	var hosts []model.IDNHost
	seen := make(map[string]bool)
	for _, u := range urls {
		host := strings.ToLower(u.Hostname())
		ascii, err := idna.ToASCII(host)
		if err != nil || !strings.Contains(ascii, "xn--") || seen[ascii] {
			continue
		}
		seen[ascii] = true
		unicode, err := idna.ToUnicode(ascii)
		if err != nil {
			unicode = host
		}
		hosts = append(hosts, model.IDNHost{ASCII: ascii, Unicode: unicode})
	}
	return hosts
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

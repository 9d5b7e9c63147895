package heuristics

import (
	"net/url"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/redirscan/internal/model"
)

// chainOf builds a chain from a URL sequence: every URL but the last is a
// redirect hop, the last is the final destination.
func chainOf(urls ...string) *model.ChainResult {
	c := &model.ChainResult{InitialURL: urls[0]}
	for i := 0; i < len(urls)-1; i++ {
		c.Hops = append(c.Hops, model.Hop{Step: i + 1, StatusCode: 302, URL: urls[i], Location: urls[i+1]})
		if strings.HasPrefix(urls[i], "http://") && strings.HasPrefix(urls[i+1], "https://") {
			c.HTTPSUpgraded = true
		}
	}
	c.HopCount = len(c.Hops)
	c.Final = model.FinalDestination{Hop: model.Hop{Step: len(urls), StatusCode: 200, URL: urls[len(urls)-1]}}
	return c
}

func TestEngineShortenerScenario(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	chain := chainOf("http://bit.ly/abc", "http://tinyurl.com/xyz", "https://example.com/")
	analysis := e.Analyze(chain, nil, nil)

	if !slices.Contains(analysis.SuspiciousIndicators, IndicatorShortenerChain) {
		t.Errorf("expected shortener chain indicator, got %v", analysis.SuspiciousIndicators)
	}
	if slices.Contains(analysis.SuspiciousIndicators, IndicatorShortenerDetected) {
		t.Error("shortener chain and shortener detected must be mutually exclusive")
	}
	if slices.Contains(analysis.SuspiciousIndicators, IndicatorPlaintextInitial) {
		t.Error("upgraded chain must not raise the plaintext indicator")
	}
	if level := e.Level(analysis.SuspiciousIndicators); level < model.RiskMedium {
		t.Errorf("expected at least medium risk, got %s", level)
	}
}

func TestEngineCleanChain(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	analysis := e.Analyze(chainOf("https://example.com"), nil, nil)

	if len(analysis.SuspiciousIndicators) != 0 {
		t.Errorf("expected no indicators, got %v", analysis.SuspiciousIndicators)
	}
	if analysis.SuspiciousIndicators == nil || analysis.TrackingParameters == nil {
		t.Error("expected empty, non-nil slices")
	}
	if e.Level(analysis.SuspiciousIndicators) != model.RiskLow {
		t.Errorf("expected low risk")
	}
}

func TestRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		chain *model.ChainResult
		want  string
		raise bool
	}{
		{name: "single shortener", chain: chainOf("https://bit.ly/x", "https://example.com/"), want: IndicatorShortenerDetected, raise: true},
		{name: "shortener subdomain", chain: chainOf("https://www.bit.ly/x", "https://example.com/"), want: IndicatorShortenerDetected, raise: true},
		{name: "no shortener", chain: chainOf("https://example.com/a", "https://example.com/b"), want: IndicatorShortenerDetected, raise: false},
		{name: "suspicious tld in final", chain: chainOf("https://example.com/", "https://login-example.tk/"), want: IndicatorSuspiciousTLD, raise: true},
		{name: "tld must match exactly", chain: chainOf("https://example.tkx/"), want: IndicatorSuspiciousTLD, raise: false},
		{name: "punycode host", chain: chainOf("https://xn--pple-43d.com/"), want: IndicatorHomograph, raise: true},
		{name: "unicode host", chain: chainOf("https://аpple.com/"), want: IndicatorHomograph, raise: true},
		{name: "ascii host", chain: chainOf("https://apple.com/"), want: IndicatorHomograph, raise: false},
		{name: "non-standard port", chain: chainOf("http://example.com:8080/"), want: IndicatorNonStandardPort, raise: true},
		{name: "explicit 443", chain: chainOf("https://example.com:443/"), want: IndicatorNonStandardPort, raise: false},
		{name: "https then http", chain: chainOf("https://a.example/", "http://b.example/"), want: IndicatorMixedContent, raise: true},
		{name: "downgrade later in chain", chain: chainOf("http://a.example/", "https://b.example/", "https://c.example/", "http://d.example/"), want: IndicatorMixedContent, raise: true},
		{name: "upgrade only", chain: chainOf("http://a.example/", "https://b.example/"), want: IndicatorMixedContent, raise: false},
		{name: "plaintext without upgrade", chain: chainOf("http://example.com/"), want: IndicatorPlaintextInitial, raise: true},
		{name: "plaintext with upgrade", chain: chainOf("http://example.com/", "https://example.com/"), want: IndicatorPlaintextInitial, raise: false},
		{
			name:  "six redirects are excessive",
			chain: chainOf("https://e.example/0", "https://e.example/1", "https://e.example/2", "https://e.example/3", "https://e.example/4", "https://e.example/5", "https://e.example/6"),
			want:  IndicatorExcessiveRedirects, raise: true,
		},
		{
			name:  "five redirects are not",
			chain: chainOf("https://e.example/0", "https://e.example/1", "https://e.example/2", "https://e.example/3", "https://e.example/4", "https://e.example/5"),
			want:  IndicatorExcessiveRedirects, raise: false,
		},
		{
			name:  "six tracking parameters",
			chain: chainOf("https://example.com/?utm_source=a&utm_medium=b&utm_campaign=c&gclid=d&fbclid=e&_ga=f"),
			want:  IndicatorHeavyTracking, raise: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			analysis := NewEngine().Analyze(tt.chain, nil, nil)
			if got := slices.Contains(analysis.SuspiciousIndicators, tt.want); got != tt.raise {
				t.Errorf("indicator %q raised = %v, want %v (all: %v)", tt.want, got, tt.raise, analysis.SuspiciousIndicators)
			}
		})
	}
}

func TestRuleTableIsIndependentlyTestable(t *testing.T) {
	t.Parallel()

	chain := chainOf("https://a.example/", "http://b.example/")
	in := NewEngine().input(chain)

	for _, rule := range DefaultRules() {
		got := rule.Predicate(in)
		want := rule.Message == IndicatorMixedContent
		if got != want {
			t.Errorf("rule %q = %v, want %v", rule.Message, got, want)
		}
	}
}

func TestScoreWeights(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	tests := []struct {
		indicators []string
		score      int
		level      model.RiskLevel
	}{
		{indicators: nil, score: 0, level: model.RiskLow},
		{indicators: []string{IndicatorPlaintextInitial}, score: 1, level: model.RiskLow},
		{indicators: []string{IndicatorHomograph}, score: 2, level: model.RiskMedium},
		{indicators: []string{IndicatorShortenerChain}, score: 3, level: model.RiskMedium},
		{indicators: []string{IndicatorSuspiciousTLD, IndicatorExcessiveRedirects}, score: 5, level: model.RiskHigh},
		{indicators: []string{IndicatorMixedContent, IndicatorHeavyTracking}, score: 4, level: model.RiskMedium},
		{indicators: []string{IndicatorShortenerDetected, IndicatorNonStandardPort}, score: 0, level: model.RiskLow},
		{indicators: []string{"something unknown"}, score: 0, level: model.RiskLow},
	}

	for _, tt := range tests {
		if got := e.Score(tt.indicators); got != tt.score {
			t.Errorf("Score(%v) = %d, want %d", tt.indicators, got, tt.score)
		}
		if got := e.Level(tt.indicators); got != tt.level {
			t.Errorf("Level(%v) = %s, want %s", tt.indicators, got, tt.level)
		}
	}
}

func TestScoreDependsOnlyOnIndicators(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	a := e.Analyze(chainOf("https://one.tk/"), nil, nil)
	b := e.Analyze(chainOf("https://other-site.ml/some/path"), nil, nil)

	if !slices.Equal(a.SuspiciousIndicators, b.SuspiciousIndicators) {
		t.Fatalf("expected identical indicator sets, got %v and %v", a.SuspiciousIndicators, b.SuspiciousIndicators)
	}
	if e.Score(a.SuspiciousIndicators) != e.Score(b.SuspiciousIndicators) {
		t.Error("identical indicator sets must produce identical scores")
	}
}

func TestTrackingParameters(t *testing.T) {
	t.Parallel()

	t.Run("case-insensitive substring match", func(t *testing.T) {
		t.Parallel()
		params := TrackingParameters(chainOf("https://example.com/?UTM_Source=news&utm_source=mail&page=2"))
		if len(params) != 2 {
			t.Fatalf("expected 2 params, got %v", params)
		}
		if params[0].Param != "UTM_Source" || params[0].Value != "news" {
			t.Errorf("unexpected first param %+v", params[0])
		}
	})

	t.Run("repeats across hops are kept", func(t *testing.T) {
		t.Parallel()
		params := TrackingParameters(chainOf(
			"http://bit.ly/x?fbclid=1",
			"https://example.com/?fbclid=1",
		))
		if len(params) != 2 {
			t.Fatalf("expected 2 records, got %v", params)
		}
		if params[0].URL == params[1].URL {
			t.Error("expected records from different URLs")
		}
	})

	t.Run("long values are truncated", func(t *testing.T) {
		t.Parallel()
		long := strings.Repeat("a", 80)
		params := TrackingParameters(chainOf("https://example.com/?gclid=" + long))
		if len(params) != 1 {
			t.Fatalf("expected 1 param, got %v", params)
		}
		if params[0].Value != strings.Repeat("a", 50)+"..." {
			t.Errorf("unexpected truncated value %q", params[0].Value)
		}
	})

	t.Run("escaped values are decoded", func(t *testing.T) {
		t.Parallel()
		params := TrackingParameters(chainOf("https://example.com/?utm_campaign=spring%20sale"))
		if len(params) != 1 || params[0].Value != "spring sale" {
			t.Errorf("unexpected params %v", params)
		}
	})

	t.Run("no query", func(t *testing.T) {
		t.Parallel()
		if params := TrackingParameters(chainOf("https://example.com/")); len(params) != 0 {
			t.Errorf("expected none, got %v", params)
		}
	})
}

func TestEngineOptions(t *testing.T) {
	t.Parallel()

	e := NewEngine(WithExtraShorteners("go.example.com"), WithExtraSuspiciousTLDs(".biz"))

	analysis := e.Analyze(chainOf("https://go.example.com/x", "https://shop.biz/"), nil, nil)
	if !slices.Contains(analysis.SuspiciousIndicators, IndicatorShortenerDetected) {
		t.Errorf("expected extra shortener to match, got %v", analysis.SuspiciousIndicators)
	}
	if !slices.Contains(analysis.SuspiciousIndicators, IndicatorSuspiciousTLD) {
		t.Errorf("expected extra TLD to match, got %v", analysis.SuspiciousIndicators)
	}

	custom := NewEngine(WithRules([]Rule{{Message: "always", Weight: 7, Predicate: func(*Input) bool { return true }}}))
	got := custom.Analyze(chainOf("https://example.com/"), nil, nil)
	if !slices.Equal(got.SuspiciousIndicators, []string{"always"}) || custom.Score(got.SuspiciousIndicators) != 7 {
		t.Errorf("unexpected custom rule result %v", got.SuspiciousIndicators)
	}
}

func TestAnalyzeAttachesEnrichments(t *testing.T) {
	t.Parallel()

	cert := &model.CertificateInfo{Subject: "CN=example.com"}
	content := &model.ContentAnalysis{HasScripts: true}
	analysis := NewEngine().Analyze(chainOf("https://example.com/"), cert, content)

	if analysis.CertificateInfo != cert || analysis.ContentAnalysis != content {
		t.Error("expected enrichments to be attached as given")
	}
}

func TestIDNHosts(t *testing.T) {
	t.Parallel()

	analysis := NewEngine().Analyze(chainOf("https://xn--pple-43d.com/", "https://xn--pple-43d.com/login"), nil, nil)
	if len(analysis.IDNHosts) != 1 {
		t.Fatalf("expected one distinct IDN host, got %v", analysis.IDNHosts)
	}
	if analysis.IDNHosts[0].Unicode != "аpple.com" {
		t.Errorf("unexpected unicode form %q", analysis.IDNHosts[0].Unicode)
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	report := model.NewReport("http://bit.ly/abc")
	report.Chain = chainOf("http://bit.ly/abc", "http://tinyurl.com/xyz", "http://example.tk/")
	NewEngine().Evaluate(report, nil, nil)

	// shortener chain 3 + suspicious TLD 3 + plaintext 1
	if report.RiskScore != 7 || report.RiskLevel != model.RiskHigh {
		t.Errorf("expected score 7 (high), got %d (%s)", report.RiskScore, report.RiskLevel)
	}
}

func TestHelpers(t *testing.T) {
	t.Parallel()

	set := map[string]bool{"bit.ly": true}
	if !matchesDomain("WWW.Bit.ly.", set) {
		t.Error("expected subdomain to match")
	}
	if matchesDomain("notbit.ly", set) || matchesDomain("192.0.2.1", set) {
		t.Error("unexpected match")
	}
	if got := topLevelDomain("foo.example.co.uk"); got != "uk" {
		t.Errorf("topLevelDomain() = %q", got)
	}
	u, _ := url.Parse("https://example.com")
	if hasNonStandardPort(&Input{URLs: []*url.URL{u}}) {
		t.Error("implicit port must not count as non-standard")
	}
}

func TestWeightsMatchRuleTable(t *testing.T) {
	t.Parallel()

	weights := Weights()
	if len(weights) != len(DefaultRules()) {
		t.Fatalf("expected %d weights, got %d", len(DefaultRules()), len(weights))
	}
	if weights[IndicatorShortenerChain] != 3 || weights[IndicatorHeavyTracking] != 1 {
		t.Errorf("unexpected weights: %v", weights)
	}
}

package heuristics

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/redirscan/internal/model"
)

// Indicator messages. The score of an analysis depends only on which of
// these were raised.
const (
	IndicatorShortenerChain     = "Multiple URL shorteners in chain"
	IndicatorShortenerDetected  = "URL shortener detected"
	IndicatorSuspiciousTLD      = "Suspicious top-level domain in chain"
	IndicatorHomograph          = "Punycode domain in chain (possible homograph attack)"
	IndicatorExcessiveRedirects = "Excessive redirects (more than 5)"
	IndicatorNonStandardPort    = "Non-standard port in chain"
	IndicatorMixedContent       = "HTTPS downgraded to HTTP (mixed content)"
	IndicatorHeavyTracking      = "Heavy tracking (more than 5 tracking parameters)"
	IndicatorPlaintextInitial   = "Initial request over plain HTTP without HTTPS upgrade"
)

// Thresholds used by the rules.
const (
	excessiveRedirectThreshold = 5
	heavyTrackingThreshold     = 5
)

// Input is what rule predicates evaluate.
type Input struct {
	// Chain is the traced chain.
	Chain *model.ChainResult

	// URLs is the parsed traversed URL sequence. Unparsable URLs are skipped.
	URLs []*url.URL

	// Tracking holds the detected tracking parameters.
	Tracking []model.TrackingParameter

	shorteners map[string]bool
	tlds       map[string]bool
}

// Rule is one entry of the heuristics table.
type Rule struct {
	// Message is the indicator raised when Predicate holds.
	Message string

	// Weight is added to the score when the indicator is raised.
	Weight int

	// Predicate decides whether the indicator is raised.
	Predicate func(in *Input) bool
}

// DefaultRules returns the rule table in evaluation order.
// The shortener rules are mutually exclusive by construction.
func DefaultRules() []Rule {
	return []Rule{
		{Message: IndicatorShortenerChain, Weight: 3, Predicate: func(in *Input) bool { return in.shortenerHops() >= 2 }},
		{Message: IndicatorShortenerDetected, Weight: 0, Predicate: func(in *Input) bool { return in.shortenerHops() == 1 }},
		{Message: IndicatorSuspiciousTLD, Weight: 3, Predicate: hasSuspiciousTLD},
		{Message: IndicatorHomograph, Weight: 2, Predicate: hasPunycode},
		{Message: IndicatorExcessiveRedirects, Weight: 2, Predicate: func(in *Input) bool {
			return in.Chain.HopCount > excessiveRedirectThreshold
		}},
		{Message: IndicatorNonStandardPort, Weight: 0, Predicate: hasNonStandardPort},
		{Message: IndicatorMixedContent, Weight: 3, Predicate: hasDowngrade},
		{Message: IndicatorHeavyTracking, Weight: 1, Predicate: func(in *Input) bool {
			return len(in.Tracking) > heavyTrackingThreshold
		}},
		{Message: IndicatorPlaintextInitial, Weight: 1, Predicate: func(in *Input) bool {
			return schemeOf(in.Chain.InitialURL) == "http" && !in.Chain.HTTPSUpgraded
		}},
	}
}

// Weights returns the weight of every default indicator keyed by message.
func Weights() map[string]int {
	rules := DefaultRules()
	weights := make(map[string]int, len(rules))
	for _, r := range rules {
		weights[r.Message] = r.Weight
	}
	return weights
}

// shortenerHops counts hops whose host belongs to a shortener domain.
func (in *Input) shortenerHops() int {
	count := 0
	for _, hop := range in.Chain.Hops {
		u, err := url.Parse(hop.URL)
		if err != nil {
			continue
		}
		if matchesDomain(u.Hostname(), in.shorteners) {
			count++
		}
	}
	return count
}

func hasSuspiciousTLD(in *Input) bool {
	for _, u := range in.URLs {
		if in.tlds[topLevelDomain(u.Hostname())] {
			return true
		}
	}
	return false
}

func hasPunycode(in *Input) bool {
	for _, u := range in.URLs {
		if strings.Contains(strings.ToLower(u.String()), "xn--") {
			return true
		}
		// Unicode hosts are sent as punycode on the wire.
		if ascii, err := idna.ToASCII(u.Hostname()); err == nil && strings.Contains(ascii, "xn--") {
			return true
		}
	}
	return false
}

func hasNonStandardPort(in *Input) bool {
	for _, u := range in.URLs {
		if port := u.Port(); port != "" && port != "80" && port != "443" {
			return true
		}
	}
	return false
}

// hasDowngrade reports whether an http URL follows an https URL anywhere
// in the sequence.
func hasDowngrade(in *Input) bool {
	seenHTTPS := false
	for _, u := range in.URLs {
		switch u.Scheme {
		case "https":
			seenHTTPS = true
		case "http":
			if seenHTTPS {
				return true
			}
		}
	}
	return false
}

// matchesDomain reports whether host or any of its parent domains is in set.
func matchesDomain(host string, set map[string]bool) bool {
	h := strings.ToLower(strings.TrimSuffix(host, "."))
	for h != "" {
		if set[h] {
			return true
		}
		i := strings.IndexByte(h, '.')
		if i < 0 {
			break
		}
		h = h[i+1:]
	}
	return false
}

// topLevelDomain returns the last label of the public suffix of host.
func topLevelDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	suffix, _ := publicsuffix.PublicSuffix(host)
	if i := strings.LastIndex(suffix, "."); i >= 0 {
		return suffix[i+1:]
	}
	return suffix
}

func schemeOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Scheme
}

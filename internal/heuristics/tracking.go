package heuristics

import (
	"net/url"
	"strings"

	"github.com/nao1215/redirscan/internal/model"
)

// maxTrackingValueLen is the length tracking values are truncated to.
const maxTrackingValueLen = 50

// isTrackingParam reports whether name contains any tracking marker.
func isTrackingParam(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range trackingParamMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// TrackingParameters extracts tracking parameters from every URL in the
// traversed sequence. Query order is preserved and repeats are kept.
func TrackingParameters(chain *model.ChainResult) []model.TrackingParameter {
	params := []model.TrackingParameter{}
	for _, raw := range chain.URLSequence() {
		params = append(params, trackingParamsIn(raw)...)
	}
	return params
}

func trackingParamsIn(raw string) []model.TrackingParameter {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return nil
	}

	var params []model.TrackingParameter
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(name); err == nil {
			name = decoded
		}
		if !isTrackingParam(name) {
			continue
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		params = append(params, model.TrackingParameter{
			Param: name,
			Value: truncate(value, maxTrackingValueLen),
			URL:   raw,
		})
	}
	return params
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

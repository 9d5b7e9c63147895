package model

import (
	"encoding/json"
	"fmt"
)

// RiskLevel is the coarse classification derived from the indicator score.
// It is never stored on its own; it is always recomputed from a score.
type RiskLevel int

const (
	// RiskLow is a score below 2.
	RiskLow RiskLevel = iota

	// RiskMedium is a score from 2 to 4.
	RiskMedium

	// RiskHigh is a score of 5 or more.
	RiskHigh
)

// Score thresholds for the risk levels.
const (
	MediumRiskScore = 2
	HighRiskScore   = 5
)

// RiskLevelForScore maps an indicator score to its risk level.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= HighRiskScore:
		return RiskHigh
	case score >= MediumRiskScore:
		return RiskMedium
	default:
		return RiskLow
	}
}

// String returns the lower-case level name.
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the level as its name.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a level name.
func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "low":
		*r = RiskLow
	case "medium":
		*r = RiskMedium
	case "high":
		*r = RiskHigh
	default:
		return fmt.Errorf("unknown risk level %q", s)
	}
	return nil
}

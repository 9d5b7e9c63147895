package model

import "time"

// Report combines a trace with its security analysis and history diff.
// It is what exporters render and what the archive stores.
type Report struct {
	// Chain is the traced and enriched redirect chain.
	Chain *ChainResult `json:"chain"`

	// Security is the heuristics output.
	Security *SecurityAnalysis `json:"security"`

	// RiskScore is the summed indicator weight.
	RiskScore int `json:"risk_score"`

	// RiskLevel is derived from RiskScore.
	RiskLevel RiskLevel `json:"risk_level"`

	// History is set when the historical comparator ran.
	History *HistoryDiff `json:"history,omitempty"`

	// AnalyzedAt is when the trace started.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`
}

// NewReport creates an empty report for url.
func NewReport(url string) *Report {
	return &Report{
		Chain:    &ChainResult{InitialURL: url},
		Security: &SecurityAnalysis{},
	}
}

// Package model defines the core data structures used throughout redirscan.
//
// This package contains the following main types:
//   - Hop, FinalDestination, ChainResult: the traced redirect chain
//   - DNSInfo, CertificateInfo, ContentAnalysis: best-effort enrichments
//   - SecurityAnalysis, TrackingParameter, RiskLevel: heuristic output
//   - HistoryDiff: the difference to the previous trace of the same URL
//   - Report: everything above combined for exporters and the archive
//
// Optional enrichments are pointers. A nil pointer always means the
// enrichment did not succeed; it is never replaced by placeholder data.
//
// Models live in their own package so the tracer, enrichers, heuristics
// and exporters can share them without import cycles.
package model

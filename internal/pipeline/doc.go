// Package pipeline runs an analysis as an ordered list of steps.
//
// A full analysis is trace, enrich, heuristics, history, then the optional
// alert and archive steps. Each step receives the report built so far.
// Tracing failures are fatal and end the pipeline without a report; the
// later steps degrade instead of failing.
//
// BatchProcessor runs independent pipelines for many URLs with bounded
// concurrency using errgroup.
package pipeline

// Package history keeps the most recent trace of each analyzed URL in a
// bounded in-memory cache and reports what changed since then.
//
// A Cache is an explicit service: construct it with New, call Start to run
// the hourly expiry sweep and Stop to end it. Nothing is persisted.
package history

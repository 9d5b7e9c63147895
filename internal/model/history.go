package model

// Diff types emitted by the historical comparator.
const (
	DiffHopCount         = "hop_count"
	DiffFinalDestination = "final_destination"
	DiffFinalStatus      = "final_status"
)

// Change is one field that differs from the previous trace.
type Change struct {
	Type string `json:"type"`
	Old  string `json:"old"`
	New  string `json:"new"`
}

// HistoryDiff compares a trace with the previous trace of the same URL.
type HistoryDiff struct {
	// Changed is false when the previous trace matches or none exists.
	Changed bool `json:"changed"`

	// FirstSeen is true when no previous trace of the URL was stored.
	FirstSeen bool `json:"first_seen,omitempty"`

	// Changes lists differing fields in a fixed order.
	Changes []Change `json:"changes,omitempty"`
}

package models

import "time"

// MissingRange is a date span a source could not serve.
type MissingRange struct {
	From time.Time
	To   time.Time
}

// RejectedRecord describes one malformed or irreconcilable raw record
// dropped during merge. Never silently discarded.
type RejectedRecord struct {
	SourceID string
	Date     time.Time
	Reason   string
}

// MergeResult is the Reconciler's structured outcome for one run.
type MergeResult struct {
	Points    []PricePoint
	Weather   []WeatherPoint
	Rejected  []RejectedRecord
	Conflicts int
}

// SourceReport summarizes one adapter's contribution to a sync cycle.
type SourceReport struct {
	Source        string
	FetchedCount  int
	RejectedCount int
	MissingRanges []MissingRange
	Error         string
}

// SyncReport is returned by the manual sync trigger.
type SyncReport struct {
	StartedAt    time.Time
	Duration     time.Duration
	Sources      []SourceReport
	MergedPoints int
}

package models

import "errors"

// Typed pipeline errors. Callers match with errors.Is; nothing here is
// fatal to the process - a single series' failure must not affect other
// series' availability.
var (
	// ErrSourceUnavailable: one adapter timed out or errored. Recoverable;
	// the pipeline proceeds with partial data and reports the gap.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrInvalidHorizon: predict called with horizon outside [7, 365].
	ErrInvalidHorizon = errors.New("invalid forecast horizon")

	// ErrInsufficientHistory: canonical series shorter than the minimum
	// viable history for a forecast.
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrStaleData: canonical series has no update within the freshness
	// window. Surfaced as a warning alongside forecasts, not a failure.
	ErrStaleData = errors.New("canonical series is stale")

	// ErrNoValidRecords: a merge was requested but zero valid records
	// remained after rejection.
	ErrNoValidRecords = errors.New("no valid records for range")

	ErrSeriesNotFound = errors.New("series not found")
	ErrAlertNotFound  = errors.New("alert not found")
)

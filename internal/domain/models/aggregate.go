package models

import "time"

// RegionalSnapshot is a derived, ephemeral state-level aggregate.
// Recomputed on demand; canonical PricePoints remain the source of truth.
type RegionalSnapshot struct {
	StateID      string
	Commodity    string
	AsOf         time.Time
	AveragePrice float64 // quintal
	MarketCount  int     // markets that contributed data
}

// Comparison aligns several series on a shared date axis. A nil value
// means no data for that date, never zero.
type Comparison struct {
	Dates  []time.Time
	Series map[string][]*float64
}

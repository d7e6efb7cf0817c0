package models

import "time"

// Unit is the price quotation unit for a point or raw record.
type Unit string

const (
	UnitQuintal Unit = "quintal"
	UnitKg      Unit = "kg"
)

// KgPerQuintal is the fixed, lossless conversion factor.
const KgPerQuintal = 100.0

// IsValidUnit returns true if u is a supported unit.
func IsValidUnit(u Unit) bool {
	switch u {
	case UnitQuintal, UnitKg:
		return true
	default:
		return false
	}
}

// SeriesKey identifies one canonical time series. Stable for the lifetime
// of the system; never reused across different physical markets.
type SeriesKey struct {
	Commodity string
	Market    string
}

func (k SeriesKey) String() string { return k.Commodity + ":" + k.Market }

// IsNational reports whether the key carries no market, i.e. a
// commodity-level record from a macro-stat source.
func (k SeriesKey) IsNational() bool { return k.Market == "" }

// DateRange is an inclusive day-granularity range.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Days returns the number of days in the range, inclusive.
func (r DateRange) Days() int {
	if r.To.Before(r.From) {
		return 0
	}
	return int(r.To.Sub(r.From).Hours()/24) + 1
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d time.Time) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// PricePoint is one canonical reconciled price for a (series key, date).
// Invariant: Min <= Average <= Max. Stored internally in quintal.
type PricePoint struct {
	Key          SeriesKey
	Date         time.Time
	Unit         Unit
	Min          float64
	Max          float64
	Average      float64
	SourceIDs    []string
	Interpolated bool
}

// InUnit returns a copy of the point converted to the requested unit.
// Conversion is lossless and idempotent (fixed quintal<->kg factor).
func (p PricePoint) InUnit(u Unit) PricePoint {
	if p.Unit == u {
		return p
	}
	out := p
	out.Unit = u
	factor := 1.0 / KgPerQuintal // quintal -> kg
	if u == UnitQuintal {
		factor = KgPerQuintal // kg -> quintal
	}
	out.Min *= factor
	out.Max *= factor
	out.Average *= factor
	return out
}

// WeatherPoint is one canonical weather observation for a location/date.
type WeatherPoint struct {
	LocationID string
	Date       time.Time
	TempC      float64
	Condition  string
	RainfallMM float64
}

// RawPriceRecord is a normalized record from one source fetch, before
// reconciliation. A record with an empty Market is commodity-level
// (macro-stat) and participates in every market's merge at reduced weight.
type RawPriceRecord struct {
	SourceID  string
	FetchedAt time.Time
	Key       SeriesKey
	Date      time.Time
	Unit      Unit
	Min       float64
	Max       float64
	Average   float64
}

// RawWeatherRecord is a normalized weather record from one source fetch.
type RawWeatherRecord struct {
	SourceID   string
	FetchedAt  time.Time
	LocationID string
	Date       time.Time
	TempC      float64
	Condition  string
	RainfallMM float64
}

// Day truncates t to UTC midnight. All canonical dates are day-keyed.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package models

import (
	"math"
	"testing"
	"time"
)

func TestInUnitRoundTrip(t *testing.T) {
	p := PricePoint{
		Key:     SeriesKey{Commodity: "wheat", Market: "azadpur"},
		Date:    time.Date(2024, 10, 19, 0, 0, 0, 0, time.UTC),
		Unit:    UnitQuintal,
		Min:     2217,
		Max:     2483,
		Average: 2351.37,
	}

	back := p.InUnit(UnitKg).InUnit(UnitQuintal)
	if back.Unit != UnitQuintal {
		t.Fatalf("unit = %q, want quintal", back.Unit)
	}
	const tol = 1e-9
	if math.Abs(back.Min-p.Min) > tol || math.Abs(back.Max-p.Max) > tol || math.Abs(back.Average-p.Average) > tol {
		t.Fatalf("round trip drifted: %+v vs %+v", back, p)
	}
}

func TestInUnitSameUnitIsIdentity(t *testing.T) {
	p := PricePoint{Unit: UnitKg, Min: 22.17, Max: 24.83, Average: 23.51}
	got := p.InUnit(UnitKg)
	if got.Unit != p.Unit || got.Min != p.Min || got.Max != p.Max || got.Average != p.Average {
		t.Fatalf("same-unit conversion changed the point: %+v", got)
	}
}

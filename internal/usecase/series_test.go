package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"MandiPulse/internal/domain/models"
	internalrepo "MandiPulse/internal/repository"
)

func seedCanonical(t *testing.T, store *internalrepo.MemoryCanonicalStore, key models.SeriesKey, from time.Time, avgs []float64) {
	t.Helper()
	points := make([]models.PricePoint, 0, len(avgs))
	for i, avg := range avgs {
		points = append(points, models.PricePoint{
			Key:     key,
			Date:    from.AddDate(0, 0, i),
			Unit:    models.UnitQuintal,
			Min:     avg - 50,
			Max:     avg + 50,
			Average: avg,
		})
	}
	rng := models.DateRange{From: from, To: from.AddDate(0, 0, len(avgs)-1)}
	if err := store.ReplacePricePoints(context.Background(), key, rng, points); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestGetSeriesConvertsToKg(t *testing.T) {
	store := internalrepo.NewMemoryCanonicalStore()
	key := models.SeriesKey{Commodity: "wheat", Market: "azadpur"}
	seedCanonical(t, store, key, day("2024-10-18"), []float64{2200, 2300})
	uc := NewSeriesUseCase(store, 72*time.Hour, WithSeriesClock(func() time.Time { return testNow }))

	res, err := uc.GetSeries(context.Background(), key, models.DateRange{From: day("2024-10-18"), To: day("2024-10-19")}, models.UnitKg)
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if len(res.Points) != 2 {
		t.Fatalf("points = %d, want 2", len(res.Points))
	}
	if res.Points[0].Average != 22 || res.Points[0].Unit != models.UnitKg {
		t.Fatalf("point = %+v, want 22 kg", res.Points[0])
	}
	if res.Stale {
		t.Fatalf("series within freshness window reported stale")
	}
}

func TestGetSeriesUnknownSeries(t *testing.T) {
	store := internalrepo.NewMemoryCanonicalStore()
	uc := NewSeriesUseCase(store, 72*time.Hour)

	_, err := uc.GetSeries(context.Background(), models.SeriesKey{Commodity: "rice", Market: "vashi"},
		models.DateRange{From: day("2024-10-01"), To: day("2024-10-19")}, models.UnitQuintal)
	if !errors.Is(err, models.ErrSeriesNotFound) {
		t.Fatalf("err = %v, want ErrSeriesNotFound", err)
	}
}

func TestGetSeriesStaleFlag(t *testing.T) {
	store := internalrepo.NewMemoryCanonicalStore()
	key := models.SeriesKey{Commodity: "onion", Market: "vashi"}
	seedCanonical(t, store, key, day("2024-10-01"), []float64{1500})
	uc := NewSeriesUseCase(store, 72*time.Hour, WithSeriesClock(func() time.Time { return testNow }))

	res, err := uc.GetSeries(context.Background(), key, models.DateRange{From: day("2024-10-01"), To: day("2024-10-19")}, models.UnitQuintal)
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if !res.Stale {
		t.Fatalf("series last updated %v should be stale at %v", res.LastUpdated, testNow)
	}
}

func TestGetWeatherImpactHint(t *testing.T) {
	store := internalrepo.NewMemoryCanonicalStore()
	rng := models.DateRange{From: day("2024-10-18"), To: day("2024-10-19")}
	points := []models.WeatherPoint{
		{LocationID: "delhi-ncr", Date: day("2024-10-18"), TempC: 30, RainfallMM: 0},
		{LocationID: "delhi-ncr", Date: day("2024-10-19"), TempC: 38, RainfallMM: 0},
	}
	if err := store.ReplaceWeatherPoints(context.Background(), "delhi-ncr", rng, points); err != nil {
		t.Fatalf("seed weather: %v", err)
	}
	uc := NewSeriesUseCase(store, 72*time.Hour)

	res, err := uc.GetWeather(context.Background(), "delhi-ncr", rng)
	if err != nil {
		t.Fatalf("GetWeather: %v", err)
	}
	if len(res.Points) != 2 {
		t.Fatalf("points = %d, want 2", len(res.Points))
	}
	if res.Impact != "heat stress may add upward price pressure" {
		t.Fatalf("impact = %q", res.Impact)
	}
}

func TestGetSeriesRejectsUnknownUnit(t *testing.T) {
	store := internalrepo.NewMemoryCanonicalStore()
	uc := NewSeriesUseCase(store, 72*time.Hour)

	_, err := uc.GetSeries(context.Background(), models.SeriesKey{Commodity: "wheat", Market: "azadpur"},
		models.DateRange{From: day("2024-10-01"), To: day("2024-10-19")}, models.Unit("tonne"))
	if err == nil {
		t.Fatalf("unknown unit accepted")
	}
}

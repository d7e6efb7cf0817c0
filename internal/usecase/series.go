package usecase

import (
	"context"
	"fmt"
	"time"

	"MandiPulse/internal/domain/models"
	domrepo "MandiPulse/internal/domain/repository"
)

// SeriesUseCase serves canonical series reads with unit conversion and
// freshness reporting.
type SeriesUseCase struct {
	store           domrepo.CanonicalStore
	freshnessWindow time.Duration
	now             func() time.Time
}

type SeriesOption func(*SeriesUseCase)

func WithSeriesClock(now func() time.Time) SeriesOption {
	return func(uc *SeriesUseCase) { uc.now = now }
}

func NewSeriesUseCase(store domrepo.CanonicalStore, freshnessWindow time.Duration, opts ...SeriesOption) *SeriesUseCase {
	if freshnessWindow <= 0 {
		freshnessWindow = 72 * time.Hour
	}
	uc := &SeriesUseCase{
		store:           store,
		freshnessWindow: freshnessWindow,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// SeriesResult is one canonical range read plus its freshness state.
type SeriesResult struct {
	Key         models.SeriesKey
	Unit        models.Unit
	Points      []models.PricePoint
	LastUpdated time.Time
	Stale       bool
}

// GetSeries reads the canonical points of key in rng, converted to the
// requested unit. An empty series is ErrSeriesNotFound.
func (uc *SeriesUseCase) GetSeries(ctx context.Context, key models.SeriesKey, rng models.DateRange, unit models.Unit) (*SeriesResult, error) {
	if unit == "" {
		unit = models.UnitQuintal
	}
	if !models.IsValidUnit(unit) {
		return nil, fmt.Errorf("unknown unit %q", unit)
	}

	points, err := uc.store.GetPricePoints(ctx, key, rng)
	if err != nil {
		return nil, fmt.Errorf("load series %s: %w", key, err)
	}
	last, err := uc.store.LastUpdated(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("last updated %s: %w", key, err)
	}
	if len(points) == 0 && last.IsZero() {
		return nil, fmt.Errorf("series %s: %w", key, models.ErrSeriesNotFound)
	}

	out := make([]models.PricePoint, 0, len(points))
	for _, p := range points {
		out = append(out, p.InUnit(unit))
	}
	return &SeriesResult{
		Key:         key,
		Unit:        unit,
		Points:      out,
		LastUpdated: last,
		Stale:       uc.now().Sub(last) > uc.freshnessWindow,
	}, nil
}

// WeatherResult is a weather range read plus a derived impact hint for
// the most recent observation.
type WeatherResult struct {
	LocationID string
	Points     []models.WeatherPoint
	Impact     string
}

// GetWeather reads canonical weather for one location.
func (uc *SeriesUseCase) GetWeather(ctx context.Context, locationID string, rng models.DateRange) (*WeatherResult, error) {
	points, err := uc.store.GetWeatherPoints(ctx, locationID, rng)
	if err != nil {
		return nil, err
	}
	return &WeatherResult{
		LocationID: locationID,
		Points:     points,
		Impact:     weatherImpact(points),
	}, nil
}

// weatherImpact derives a price-impact hint from the latest observation.
func weatherImpact(points []models.WeatherPoint) string {
	if len(points) == 0 {
		return ""
	}
	latest := points[len(points)-1]
	switch {
	case latest.RainfallMM > 20:
		return "heavy rainfall may disrupt arrivals and push prices up"
	case latest.RainfallMM > 5:
		return "recent rainfall favors sowing conditions"
	case latest.TempC > 35:
		return "heat stress may add upward price pressure"
	default:
		return "no significant weather impact expected"
	}
}

package repository

import (
	"context"
	"time"

	"MandiPulse/internal/domain/models"
)

// CanonicalStore holds the reconciled series. The Reconciler is the sole
// writer; every other component reads only.
type CanonicalStore interface {
	// ReplacePricePoints atomically replaces the canonical points of one
	// series inside the given range. Replace-not-append keeps merge
	// idempotent: re-running the same raw input yields the same state.
	ReplacePricePoints(ctx context.Context, key models.SeriesKey, rng models.DateRange, points []models.PricePoint) error
	GetPricePoints(ctx context.Context, key models.SeriesKey, rng models.DateRange) ([]models.PricePoint, error)
	GetLatestPricePoints(ctx context.Context, key models.SeriesKey, n int) ([]models.PricePoint, error)
	// LastUpdated returns the most recent canonical date for a series,
	// zero time if the series is empty.
	LastUpdated(ctx context.Context, key models.SeriesKey) (time.Time, error)

	ReplaceWeatherPoints(ctx context.Context, locationID string, rng models.DateRange, points []models.WeatherPoint) error
	GetWeatherPoints(ctx context.Context, locationID string, rng models.DateRange) ([]models.WeatherPoint, error)

	Health(ctx context.Context) error
	Close() error
}

// SentimentStore keeps externally produced sentiment scores.
type SentimentStore interface {
	Put(ctx context.Context, s models.SentimentScore) error
	// Recent returns scores for a commodity dated in (asOf-days, asOf],
	// never after asOf.
	Recent(ctx context.Context, commodity string, asOf time.Time, days int) ([]models.SentimentScore, error)
	Distribution(ctx context.Context, commodity string, asOf time.Time, days int) (models.SentimentDistribution, error)
}

// ForecastStore keeps issued forecasts for later scoring.
type ForecastStore interface {
	Save(ctx context.Context, f *models.Forecast) error
	// Matured returns forecasts whose target date falls inside rng.
	Matured(ctx context.Context, key models.SeriesKey, rng models.DateRange) ([]models.Forecast, error)
}

// ObservationStore keeps ground-truth daily averages.
type ObservationStore interface {
	Put(ctx context.Context, o models.Observation) error
	Get(ctx context.Context, key models.SeriesKey, date time.Time) (models.Observation, bool, error)
}

// PerformanceStore keeps the current PerformanceRecords per series.
// Replace retires superseded records; there is no append history.
type PerformanceStore interface {
	Replace(ctx context.Context, key models.SeriesKey, records []models.PerformanceRecord) error
	Get(ctx context.Context, key models.SeriesKey) ([]models.PerformanceRecord, error)
}

// AlertStore is the arena for PriceAlerts, keyed by alert id and mutated
// only through the documented state machine.
type AlertStore interface {
	Save(ctx context.Context, a *models.PriceAlert) error
	Get(ctx context.Context, id string) (*models.PriceAlert, error)
	Update(ctx context.Context, a *models.PriceAlert) error
	ListByUser(ctx context.Context, userID string) ([]*models.PriceAlert, error)
	ListActiveForKey(ctx context.Context, key models.SeriesKey) ([]*models.PriceAlert, error)
}

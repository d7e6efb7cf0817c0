package service

import (
	"context"
	"time"

	"MandiPulse/internal/domain/models"
)

// FetchBatch is one adapter's normalized output for a requested range,
// plus the ranges it could not serve. Partial failure returns the
// partial set with Missing populated rather than an error.
type FetchBatch struct {
	Prices  []models.RawPriceRecord
	Weather []models.RawWeatherRecord
	Missing []models.MissingRange
}

// SourceAdapter fetches raw records from one external source and
// normalizes them to the common schema at this boundary, not inside the
// Reconciler. Fetches are idempotent and safely retryable; a timeout or
// hard failure surfaces as models.ErrSourceUnavailable.
type SourceAdapter interface {
	Name() string
	FetchLatest(ctx context.Context) (FetchBatch, error)
	FetchHistorical(ctx context.Context, rng models.DateRange) (FetchBatch, error)
}

// AdjustmentInput is everything the external adjustment function may
// see: nothing dated after AsOf ever enters this struct.
type AdjustmentInput struct {
	Key         models.SeriesKey
	AsOf        time.Time
	HorizonDays int
	Baseline    float64
	BaselineMin float64
	BaselineMax float64
	TrendSlope  float64
	Sentiments  []models.SentimentScore
	Weather     []models.WeatherPoint
}

// AdjustmentResult is the adjusted prediction with ranked drivers.
type AdjustmentResult struct {
	Average float64
	Min     float64
	Max     float64
	Drivers []models.ConfidenceDriver
}

// AdjustmentModel is the externally supplied learned adjustment. The
// pipeline treats it as a black-box pure function of its input.
type AdjustmentModel interface {
	Adjust(ctx context.Context, in AdjustmentInput) (AdjustmentResult, error)
}

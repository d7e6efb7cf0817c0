package forecast

import (
	"context"
	"fmt"
	"time"

	"MandiPulse/internal/domain/models"
	domrepo "MandiPulse/internal/domain/repository"
	domsvc "MandiPulse/internal/domain/service"
	applogger "MandiPulse/pkg/logger"
	"MandiPulse/pkg/util"
)

// historyLookbackYears bounds how far back a fit reads the canonical
// series.
const historyLookbackYears = 2

// Config holds the engine policy knobs.
type Config struct {
	MinHistory      int
	SentimentDays   int
	WeatherDays     int
	FreshnessWindow time.Duration
	// Locations maps a market to its weather location id.
	Locations map[string]string
}

func (c *Config) applyDefaults() {
	if c.MinHistory <= 0 {
		c.MinHistory = models.MinViableHistory
	}
	if c.SentimentDays <= 0 {
		c.SentimentDays = 7
	}
	if c.WeatherDays <= 0 {
		c.WeatherDays = 14
	}
	if c.FreshnessWindow <= 0 {
		c.FreshnessWindow = 72 * time.Hour
	}
}

// Engine produces the paired baseline and sentiment-adjusted forecasts
// over a canonical series. Both forecasts of one request share the same
// as-of cutoff so they stay comparable.
type Engine struct {
	store      domrepo.CanonicalStore
	sentiments domrepo.SentimentStore
	forecasts  domrepo.ForecastStore
	model      domsvc.AdjustmentModel
	log        *applogger.Logger
	cfg        Config
	now        func() time.Time
}

type Option func(*Engine)

func WithLogger(l *applogger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithAdjustmentModel replaces the built-in adjustment function.
func WithAdjustmentModel(m domsvc.AdjustmentModel) Option {
	return func(e *Engine) { e.model = m }
}

func New(store domrepo.CanonicalStore, sentiments domrepo.SentimentStore, forecasts domrepo.ForecastStore, cfg Config, opts ...Option) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		store:      store,
		sentiments: sentiments,
		forecasts:  forecasts,
		model:      NewBuiltinAdjustment(),
		cfg:        cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Predict issues a fresh baseline and adjusted forecast for key at the
// given horizon. A zero asOf means today. Data dated after asOf never
// influences the result.
func (e *Engine) Predict(ctx context.Context, key models.SeriesKey, horizonDays int, asOf time.Time) (*models.ForecastPair, error) {
	if horizonDays < models.MinHorizonDays || horizonDays > models.MaxHorizonDays {
		return nil, fmt.Errorf("horizon %d: %w", horizonDays, models.ErrInvalidHorizon)
	}
	if asOf.IsZero() {
		asOf = models.Day(e.now())
	} else {
		asOf = models.Day(asOf)
	}

	rng := models.DateRange{From: asOf.AddDate(-historyLookbackYears, 0, 0), To: asOf}
	points, err := e.store.GetPricePoints(ctx, key, rng)
	if err != nil {
		return nil, fmt.Errorf("load series %s: %w", key, err)
	}
	// Leakage guard: trim anything the store returned past the cutoff.
	cut := points[:0]
	for _, p := range points {
		if !p.Date.After(asOf) {
			cut = append(cut, p)
		}
	}
	points = cut

	if len(points) < e.cfg.MinHistory {
		return nil, fmt.Errorf("%d points, need %d: %w", len(points), e.cfg.MinHistory, models.ErrInsufficientHistory)
	}

	stale := asOf.Sub(points[len(points)-1].Date) > e.cfg.FreshnessWindow
	if stale && e.log != nil {
		e.log.Warn("forecasting from stale series",
			applogger.String("series", key.String()),
			applogger.String("last_point", util.DayKey(points[len(points)-1].Date)),
		)
	}

	fit := fitBaseline(points)
	avg, min, max := fit.project(horizonDays)

	issuedAt := e.now()
	target := asOf.AddDate(0, 0, horizonDays)
	baseline := &models.Forecast{
		Key:              key,
		Model:            models.ModelBaseline,
		IssuedAt:         issuedAt,
		AsOf:             asOf,
		HorizonDays:      horizonDays,
		TargetDate:       target,
		PredictedAverage: avg,
		PredictedMin:     min,
		PredictedMax:     max,
		StaleInput:       stale,
	}

	adjusted, err := e.adjust(ctx, baseline, fit.slope)
	if err != nil {
		return nil, err
	}

	if err := e.forecasts.Save(ctx, baseline); err != nil {
		return nil, fmt.Errorf("save baseline forecast: %w", err)
	}
	if err := e.forecasts.Save(ctx, adjusted); err != nil {
		return nil, fmt.Errorf("save adjusted forecast: %w", err)
	}
	return &models.ForecastPair{Baseline: baseline, Adjusted: adjusted}, nil
}

func (e *Engine) adjust(ctx context.Context, baseline *models.Forecast, slope float64) (*models.Forecast, error) {
	key := baseline.Key

	scores, err := e.sentiments.Recent(ctx, key.Commodity, baseline.AsOf, e.cfg.SentimentDays)
	if err != nil {
		return nil, fmt.Errorf("load sentiment %s: %w", key.Commodity, err)
	}

	var weather []models.WeatherPoint
	if loc, ok := e.cfg.Locations[key.Market]; ok {
		wrng := models.DateRange{From: baseline.AsOf.AddDate(0, 0, -e.cfg.WeatherDays), To: baseline.AsOf}
		weather, err = e.store.GetWeatherPoints(ctx, loc, wrng)
		if err != nil {
			return nil, fmt.Errorf("load weather %s: %w", loc, err)
		}
	}

	res, err := e.model.Adjust(ctx, domsvc.AdjustmentInput{
		Key:         key,
		AsOf:        baseline.AsOf,
		HorizonDays: baseline.HorizonDays,
		Baseline:    baseline.PredictedAverage,
		BaselineMin: baseline.PredictedMin,
		BaselineMax: baseline.PredictedMax,
		TrendSlope:  slope,
		Sentiments:  scores,
		Weather:     weather,
	})
	if err != nil {
		return nil, fmt.Errorf("adjustment model: %w", err)
	}

	min, max := res.Min, res.Max
	if min > res.Average {
		min = res.Average
	}
	if max < res.Average {
		max = res.Average
	}
	return &models.Forecast{
		Key:              key,
		Model:            models.ModelSentimentAdjusted,
		IssuedAt:         baseline.IssuedAt,
		AsOf:             baseline.AsOf,
		HorizonDays:      baseline.HorizonDays,
		TargetDate:       baseline.TargetDate,
		PredictedAverage: res.Average,
		PredictedMin:     min,
		PredictedMax:     max,
		Drivers:          res.Drivers,
		StaleInput:       baseline.StaleInput,
	}, nil
}

package perf

import (
	"context"
	"fmt"
	"math"
	"time"

	"MandiPulse/internal/domain/models"
	domrepo "MandiPulse/internal/domain/repository"
	applogger "MandiPulse/pkg/logger"
	"MandiPulse/pkg/util"
)

// Tracker scores matured forecasts against ground-truth observations and
// maintains the current per-model performance records.
type Tracker struct {
	forecasts    domrepo.ForecastStore
	observations domrepo.ObservationStore
	performance  domrepo.PerformanceStore
	log          *applogger.Logger
	locks        *util.KeyedMutex
	now          func() time.Time
}

type Option func(*Tracker)

func WithLogger(l *applogger.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func New(forecasts domrepo.ForecastStore, observations domrepo.ObservationStore, performance domrepo.PerformanceStore, opts ...Option) *Tracker {
	t := &Tracker{
		forecasts:    forecasts,
		observations: observations,
		performance:  performance,
		locks:        util.NewKeyedMutex(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordObservation stores one ground-truth daily average once it
// becomes available.
func (t *Tracker) RecordObservation(ctx context.Context, key models.SeriesKey, date time.Time, actual float64) error {
	if actual <= 0 {
		return fmt.Errorf("non-positive observation %v", actual)
	}
	return t.observations.Put(ctx, models.Observation{
		Key:           key,
		Date:          models.Day(date),
		ActualAverage: actual,
	})
}

// Recompute scores every matured forecast inside the window and replaces
// the series' performance records, one per model. A forecast is scored
// at most once per (model, target date): when several forecasts matured
// on the same date, the most recently issued one counts. An empty window
// yields an empty record set, not an error, and retires any records a
// prior cycle left behind.
func (t *Tracker) Recompute(ctx context.Context, key models.SeriesKey, windowDays int) ([]models.PerformanceRecord, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	to := models.Day(t.now())
	rng := models.DateRange{From: to.AddDate(0, 0, -windowDays), To: to}

	matured, err := t.forecasts.Matured(ctx, key, rng)
	if err != nil {
		return nil, fmt.Errorf("load matured forecasts %s: %w", key, err)
	}

	// One forecast per (model, target date), latest issue wins.
	type slot struct{ f models.Forecast }
	latest := make(map[string]slot)
	for _, f := range matured {
		k := string(f.Model) + "|" + util.DayKey(f.TargetDate)
		if cur, ok := latest[k]; !ok || f.IssuedAt.After(cur.f.IssuedAt) {
			latest[k] = slot{f: f}
		}
	}

	sums := make(map[models.ModelKind]float64)
	counts := make(map[models.ModelKind]int)
	for _, s := range latest {
		obs, ok, err := t.observations.Get(ctx, key, s.f.TargetDate)
		if err != nil {
			return nil, fmt.Errorf("load observation: %w", err)
		}
		if !ok {
			continue
		}
		diff := s.f.PredictedAverage - obs.ActualAverage
		sums[s.f.Model] += diff * diff
		counts[s.f.Model]++
	}

	records := make([]models.PerformanceRecord, 0, 2)
	for _, model := range []models.ModelKind{models.ModelBaseline, models.ModelSentimentAdjusted} {
		n := counts[model]
		if n == 0 {
			continue
		}
		records = append(records, models.PerformanceRecord{
			Key:         key,
			Model:       model,
			WindowDays:  windowDays,
			RMSE:        math.Sqrt(sums[model] / float64(n)),
			SampleCount: n,
			ComputedAt:  t.now(),
		})
	}
	// Replace even when nothing scored: records from a prior cycle are
	// superseded, an empty window must not keep serving them.
	l := t.locks.Lock(key.String())
	err = t.performance.Replace(ctx, key, records)
	l.Unlock()
	if err != nil {
		return nil, fmt.Errorf("replace performance %s: %w", key, err)
	}
	if t.log != nil {
		t.log.Info("performance recomputed",
			applogger.String("series", key.String()),
			applogger.Int("window_days", windowDays),
			applogger.Int("records", len(records)),
		)
	}
	return records, nil
}

// Summary reads the current records and derives the relative improvement
// of the adjusted model over the baseline.
func (t *Tracker) Summary(ctx context.Context, key models.SeriesKey) (*models.ModelPerformance, error) {
	records, err := t.performance.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load performance %s: %w", key, err)
	}
	out := &models.ModelPerformance{Key: key}
	for i := range records {
		switch records[i].Model {
		case models.ModelBaseline:
			out.Baseline = &records[i]
		case models.ModelSentimentAdjusted:
			out.Adjusted = &records[i]
		}
	}
	if out.Baseline != nil && out.Adjusted != nil && out.Baseline.RMSE > 0 {
		out.Improvement = (out.Baseline.RMSE - out.Adjusted.RMSE) / out.Baseline.RMSE
	}
	return out, nil
}

package usecase

import (
	"context"
	"sync"
	"time"

	"MandiPulse/internal/domain/models"
	domrepo "MandiPulse/internal/domain/repository"
	domsvc "MandiPulse/internal/domain/service"
	"MandiPulse/internal/reconcile"
	applogger "MandiPulse/pkg/logger"
)

// SyncUseCase runs one fetch-and-merge cycle across all source adapters.
// Adapters run concurrently; one failing source degrades the cycle to
// partial data, it never aborts it.
type SyncUseCase struct {
	adapters     []domsvc.SourceAdapter
	reconciler   *reconcile.Reconciler
	observations domrepo.ObservationStore
	alerts       AlertEvaluator
	metrics      domrepo.Metrics
	log          *applogger.Logger
	timeout      time.Duration
	lookbackDays int
	now          func() time.Time
}

// AlertEvaluator is the slice of the alert engine the sync cycle needs.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, key models.SeriesKey, value float64, at time.Time) ([]*models.PriceAlert, error)
}

type SyncOption func(*SyncUseCase)

func WithSyncLogger(l *applogger.Logger) SyncOption {
	return func(uc *SyncUseCase) { uc.log = l }
}

func WithSyncTimeout(d time.Duration) SyncOption {
	return func(uc *SyncUseCase) { uc.timeout = d }
}

func WithSyncClock(now func() time.Time) SyncOption {
	return func(uc *SyncUseCase) { uc.now = now }
}

// WithAlertEvaluator wires daily-close alert evaluation into the cycle.
func WithAlertEvaluator(a AlertEvaluator) SyncOption {
	return func(uc *SyncUseCase) { uc.alerts = a }
}

// WithSyncLookback sets how many days before today SyncLatest reaches
// back, catching late source corrections.
func WithSyncLookback(days int) SyncOption {
	return func(uc *SyncUseCase) {
		if days > 0 {
			uc.lookbackDays = days
		}
	}
}

func NewSyncUseCase(adapters []domsvc.SourceAdapter, reconciler *reconcile.Reconciler, observations domrepo.ObservationStore, metrics domrepo.Metrics, opts ...SyncOption) *SyncUseCase {
	uc := &SyncUseCase{
		adapters:     adapters,
		reconciler:   reconciler,
		observations: observations,
		metrics:      metrics,
		timeout:      60 * time.Second,
		lookbackDays: 1,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// SyncLatest merges the trailing lookback window from every source.
func (uc *SyncUseCase) SyncLatest(ctx context.Context) (*models.SyncReport, error) {
	today := models.Day(uc.now())
	return uc.SyncRange(ctx, models.DateRange{From: today.AddDate(0, 0, -uc.lookbackDays), To: today})
}

// SyncRange fetches rng from every adapter concurrently, merges the
// union, records ground-truth observations from the merged points, and
// evaluates alerts on the freshest average per series.
func (uc *SyncUseCase) SyncRange(ctx context.Context, rng models.DateRange) (*models.SyncReport, error) {
	started := uc.now()
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	type item struct {
		name  string
		batch domsvc.FetchBatch
		err   error
	}
	ch := make(chan item, len(uc.adapters))
	var wg sync.WaitGroup
	for _, a := range uc.adapters {
		wg.Add(1)
		go func(a domsvc.SourceAdapter) {
			defer wg.Done()
			batch, err := a.FetchHistorical(ctx, rng)
			ch <- item{a.Name(), batch, err}
		}(a)
	}
	wg.Wait()
	close(ch)

	report := &models.SyncReport{StartedAt: started}
	var prices []models.RawPriceRecord
	var weather []models.RawWeatherRecord
	rejectedBefore := make(map[string]int)
	for it := range ch {
		sr := models.SourceReport{Source: it.name}
		if it.err != nil {
			sr.Error = it.err.Error()
			uc.metrics.RecordError("fetch_" + it.name)
			if uc.log != nil {
				uc.log.Warn("source fetch failed", applogger.String("source", it.name), applogger.Error(it.err))
			}
		}
		sr.FetchedCount = len(it.batch.Prices) + len(it.batch.Weather)
		sr.MissingRanges = it.batch.Missing
		uc.metrics.RecordFetched(it.name, sr.FetchedCount)
		prices = append(prices, it.batch.Prices...)
		weather = append(weather, it.batch.Weather...)
		report.Sources = append(report.Sources, sr)
	}

	res, err := uc.reconciler.Merge(ctx, rng, prices, weather)
	if err != nil {
		report.Duration = uc.now().Sub(started)
		if err == models.ErrNoValidRecords {
			return report, err
		}
		return nil, err
	}

	for _, rej := range res.Rejected {
		rejectedBefore[rej.SourceID]++
	}
	for i := range report.Sources {
		n := rejectedBefore[report.Sources[i].Source]
		report.Sources[i].RejectedCount = n
		uc.metrics.RecordRejected(report.Sources[i].Source, n)
	}
	report.MergedPoints = len(res.Points)
	report.Duration = uc.now().Sub(started)

	uc.recordGroundTruth(ctx, res.Points)
	uc.evaluateAlerts(ctx, res.Points)

	if uc.log != nil {
		uc.log.Info("sync cycle complete",
			applogger.Int("merged_points", report.MergedPoints),
			applogger.Int("sources", len(report.Sources)),
			applogger.Duration("duration_ms", report.Duration),
		)
	}
	return report, nil
}

// recordGroundTruth feeds reconciled daily averages to the performance
// tracker's observation store. Interpolated points are not ground truth.
func (uc *SyncUseCase) recordGroundTruth(ctx context.Context, points []models.PricePoint) {
	for _, p := range points {
		if p.Interpolated {
			continue
		}
		err := uc.observations.Put(ctx, models.Observation{
			Key:           p.Key,
			Date:          p.Date,
			ActualAverage: p.Average,
		})
		if err != nil {
			uc.metrics.RecordError("record_observation")
			if uc.log != nil {
				uc.log.Warn("record observation failed", applogger.String("series", p.Key.String()), applogger.Error(err))
			}
		}
	}
}

// evaluateAlerts checks active alerts against the freshest merged
// average of each series.
func (uc *SyncUseCase) evaluateAlerts(ctx context.Context, points []models.PricePoint) {
	if uc.alerts == nil {
		return
	}
	latest := make(map[models.SeriesKey]models.PricePoint)
	for _, p := range points {
		if cur, ok := latest[p.Key]; !ok || p.Date.After(cur.Date) {
			latest[p.Key] = p
		}
	}
	for key, p := range latest {
		uc.metrics.RecordLastPrice(key.String(), p.Average)
		if _, err := uc.alerts.Evaluate(ctx, key, p.Average, p.Date); err != nil {
			uc.metrics.RecordError("alert_evaluate")
			if uc.log != nil {
				uc.log.Warn("alert evaluation failed", applogger.String("series", key.String()), applogger.Error(err))
			}
		}
	}
}

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"MandiPulse/internal/domain/models"
	domsvc "MandiPulse/internal/domain/service"
	"MandiPulse/internal/reconcile"
	internalrepo "MandiPulse/internal/repository"
)

var testNow = time.Date(2024, 10, 20, 12, 0, 0, 0, time.UTC)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

type noopMetrics struct{}

func (noopMetrics) RecordFetched(string, int)       {}
func (noopMetrics) RecordRejected(string, int)      {}
func (noopMetrics) RecordMerged(string, int)        {}
func (noopMetrics) RecordAlertFired(string)         {}
func (noopMetrics) RecordError(string)              {}
func (noopMetrics) RecordLastPrice(string, float64) {}
func (noopMetrics) RecordLatency(string, float64)   {}

type fakeAdapter struct {
	name     string
	batch    domsvc.FetchBatch
	err      error
	gotRange models.DateRange
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) FetchLatest(ctx context.Context) (domsvc.FetchBatch, error) {
	return a.batch, a.err
}

func (a *fakeAdapter) FetchHistorical(ctx context.Context, rng models.DateRange) (domsvc.FetchBatch, error) {
	a.gotRange = rng
	return a.batch, a.err
}

type evalCall struct {
	key   models.SeriesKey
	value float64
	at    time.Time
}

type stubEvaluator struct {
	calls []evalCall
}

func (s *stubEvaluator) Evaluate(ctx context.Context, key models.SeriesKey, value float64, at time.Time) ([]*models.PriceAlert, error) {
	s.calls = append(s.calls, evalCall{key, value, at})
	return nil, nil
}

func record(source string, key models.SeriesKey, date time.Time, avg float64) models.RawPriceRecord {
	return models.RawPriceRecord{
		SourceID:  source,
		FetchedAt: testNow,
		Key:       key,
		Date:      date,
		Unit:      models.UnitQuintal,
		Min:       avg - 100,
		Max:       avg + 100,
		Average:   avg,
	}
}

func newSyncFixture(t *testing.T, adapters []domsvc.SourceAdapter, eval *stubEvaluator, extra ...SyncOption) (*SyncUseCase, *internalrepo.MemoryCanonicalStore, *internalrepo.MemoryObservationStore) {
	t.Helper()
	store := internalrepo.NewMemoryCanonicalStore()
	obs := internalrepo.NewMemoryObservationStore()
	rec := reconcile.New(store, noopMetrics{}, reconcile.Policy{
		MaxGapDays:           3,
		ConfidenceHalfLife:   24 * time.Hour,
		ConflictThresholdPct: 10,
		MacroWeight:          0.25,
	}, reconcile.WithClock(func() time.Time { return testNow }))

	opts := []SyncOption{WithSyncClock(func() time.Time { return testNow })}
	if eval != nil {
		opts = append(opts, WithAlertEvaluator(eval))
	}
	opts = append(opts, extra...)
	uc := NewSyncUseCase(adapters, rec, obs, noopMetrics{}, opts...)
	return uc, store, obs
}

func TestSyncRangeMergesAndReports(t *testing.T) {
	key := models.SeriesKey{Commodity: "wheat", Market: "azadpur"}
	good := &fakeAdapter{
		name: "market-price",
		batch: domsvc.FetchBatch{Prices: []models.RawPriceRecord{
			record("market-price", key, day("2024-10-18"), 2200),
			record("market-price", key, day("2024-10-19"), 2300),
		}},
	}
	bad := &fakeAdapter{name: "macro-stat", err: models.ErrSourceUnavailable}
	eval := &stubEvaluator{}
	uc, _, _ := newSyncFixture(t, []domsvc.SourceAdapter{good, bad}, eval)

	report, err := uc.SyncRange(context.Background(), models.DateRange{From: day("2024-10-18"), To: day("2024-10-19")})
	if err != nil {
		t.Fatalf("SyncRange: %v", err)
	}
	if report.MergedPoints != 2 {
		t.Fatalf("merged points = %d, want 2", report.MergedPoints)
	}
	if len(report.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(report.Sources))
	}
	for _, sr := range report.Sources {
		switch sr.Source {
		case "market-price":
			if sr.Error != "" || sr.FetchedCount != 2 {
				t.Fatalf("market-price report = %+v", sr)
			}
		case "macro-stat":
			if sr.Error == "" {
				t.Fatalf("macro-stat error not reported")
			}
		default:
			t.Fatalf("unexpected source %q", sr.Source)
		}
	}
	if len(eval.calls) != 1 {
		t.Fatalf("alert evaluations = %d, want 1", len(eval.calls))
	}
	if eval.calls[0].value != 2300 || !eval.calls[0].at.Equal(day("2024-10-19")) {
		t.Fatalf("alert evaluated on %v at %v, want freshest point", eval.calls[0].value, eval.calls[0].at)
	}
}

func TestSyncRangeAttributesRejections(t *testing.T) {
	key := models.SeriesKey{Commodity: "onion", Market: "vashi"}
	malformed := record("market-price", key, day("2024-10-19"), -5)
	a := &fakeAdapter{
		name: "market-price",
		batch: domsvc.FetchBatch{Prices: []models.RawPriceRecord{
			record("market-price", key, day("2024-10-18"), 1800),
			malformed,
		}},
	}
	uc, _, _ := newSyncFixture(t, []domsvc.SourceAdapter{a}, nil)

	report, err := uc.SyncRange(context.Background(), models.DateRange{From: day("2024-10-18"), To: day("2024-10-19")})
	if err != nil {
		t.Fatalf("SyncRange: %v", err)
	}
	if report.Sources[0].RejectedCount != 1 {
		t.Fatalf("rejected count = %d, want 1", report.Sources[0].RejectedCount)
	}
	if report.MergedPoints != 1 {
		t.Fatalf("merged points = %d, want 1", report.MergedPoints)
	}
}

func TestSyncRangeNoValidRecords(t *testing.T) {
	a := &fakeAdapter{name: "market-price", batch: domsvc.FetchBatch{}}
	uc, _, _ := newSyncFixture(t, []domsvc.SourceAdapter{a}, nil)

	report, err := uc.SyncRange(context.Background(), models.DateRange{From: day("2024-10-18"), To: day("2024-10-19")})
	if !errors.Is(err, models.ErrNoValidRecords) {
		t.Fatalf("err = %v, want ErrNoValidRecords", err)
	}
	if report == nil {
		t.Fatalf("report should still describe the empty cycle")
	}
}

func TestSyncLatestUsesLookback(t *testing.T) {
	key := models.SeriesKey{Commodity: "wheat", Market: "azadpur"}
	a := &fakeAdapter{
		name: "market-price",
		batch: domsvc.FetchBatch{Prices: []models.RawPriceRecord{
			record("market-price", key, day("2024-10-19"), 2300),
		}},
	}
	uc, _, _ := newSyncFixture(t, []domsvc.SourceAdapter{a}, nil, WithSyncLookback(3))

	if _, err := uc.SyncLatest(context.Background()); err != nil {
		t.Fatalf("SyncLatest: %v", err)
	}
	today := models.Day(testNow)
	if !a.gotRange.From.Equal(today.AddDate(0, 0, -3)) {
		t.Fatalf("lookback from = %v, want %v", a.gotRange.From, today.AddDate(0, 0, -3))
	}
	if !a.gotRange.To.Equal(today) {
		t.Fatalf("lookback to = %v, want %v", a.gotRange.To, today)
	}
}

func TestSyncRecordsGroundTruthSkippingInterpolated(t *testing.T) {
	key := models.SeriesKey{Commodity: "potato", Market: "koyambedu"}
	a := &fakeAdapter{
		name: "market-price",
		batch: domsvc.FetchBatch{Prices: []models.RawPriceRecord{
			record("market-price", key, day("2024-10-17"), 1100),
			record("market-price", key, day("2024-10-19"), 1300),
		}},
	}
	uc, _, obs := newSyncFixture(t, []domsvc.SourceAdapter{a}, nil)

	report, err := uc.SyncRange(context.Background(), models.DateRange{From: day("2024-10-17"), To: day("2024-10-19")})
	if err != nil {
		t.Fatalf("SyncRange: %v", err)
	}
	if report.MergedPoints != 3 {
		t.Fatalf("merged points = %d, want 3 (gap filled)", report.MergedPoints)
	}

	ctx := context.Background()
	if _, ok, _ := obs.Get(ctx, key, day("2024-10-17")); !ok {
		t.Fatalf("observation for 10-17 missing")
	}
	if _, ok, _ := obs.Get(ctx, key, day("2024-10-19")); !ok {
		t.Fatalf("observation for 10-19 missing")
	}
	if _, ok, _ := obs.Get(ctx, key, day("2024-10-18")); ok {
		t.Fatalf("interpolated point recorded as ground truth")
	}
}

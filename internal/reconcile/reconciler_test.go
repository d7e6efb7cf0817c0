package reconcile

import (
	"context"
	"testing"
	"time"

	"MandiPulse/internal/domain/models"
)

type stubStore struct {
	prices  map[string][]models.PricePoint
	weather map[string][]models.WeatherPoint
}

func newStubStore() *stubStore {
	return &stubStore{
		prices:  make(map[string][]models.PricePoint),
		weather: make(map[string][]models.WeatherPoint),
	}
}

func (s *stubStore) ReplacePricePoints(_ context.Context, key models.SeriesKey, _ models.DateRange, points []models.PricePoint) error {
	s.prices[key.String()] = append([]models.PricePoint{}, points...)
	return nil
}

func (s *stubStore) GetPricePoints(_ context.Context, key models.SeriesKey, _ models.DateRange) ([]models.PricePoint, error) {
	return s.prices[key.String()], nil
}

func (s *stubStore) GetLatestPricePoints(_ context.Context, key models.SeriesKey, n int) ([]models.PricePoint, error) {
	pts := s.prices[key.String()]
	if len(pts) > n {
		pts = pts[len(pts)-n:]
	}
	return pts, nil
}

func (s *stubStore) LastUpdated(_ context.Context, key models.SeriesKey) (time.Time, error) {
	pts := s.prices[key.String()]
	if len(pts) == 0 {
		return time.Time{}, nil
	}
	return pts[len(pts)-1].Date, nil
}

func (s *stubStore) ReplaceWeatherPoints(_ context.Context, loc string, _ models.DateRange, points []models.WeatherPoint) error {
	s.weather[loc] = append([]models.WeatherPoint{}, points...)
	return nil
}

func (s *stubStore) GetWeatherPoints(_ context.Context, loc string, _ models.DateRange) ([]models.WeatherPoint, error) {
	return s.weather[loc], nil
}

func (s *stubStore) Health(context.Context) error { return nil }
func (s *stubStore) Close() error                 { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordFetched(string, int)      {}
func (noopMetrics) RecordRejected(string, int)     {}
func (noopMetrics) RecordMerged(string, int)       {}
func (noopMetrics) RecordAlertFired(string)        {}
func (noopMetrics) RecordError(string)             {}
func (noopMetrics) RecordLastPrice(string, float64) {}
func (noopMetrics) RecordLatency(string, float64)  {}

var testNow = time.Date(2024, 10, 20, 12, 0, 0, 0, time.UTC)

func newTestReconciler(store *stubStore) *Reconciler {
	return New(store, noopMetrics{}, DefaultPolicy(), WithClock(func() time.Time { return testNow }))
}

func day(d int) time.Time {
	return time.Date(2024, 10, d, 0, 0, 0, 0, time.UTC)
}

func record(source string, d int, min, avg, max float64) models.RawPriceRecord {
	return models.RawPriceRecord{
		SourceID:  source,
		FetchedAt: testNow,
		Key:       models.SeriesKey{Commodity: "wheat", Market: "indore"},
		Date:      day(d),
		Unit:      models.UnitQuintal,
		Min:       min,
		Max:       max,
		Average:   avg,
	}
}

func testRange() models.DateRange {
	return models.DateRange{From: day(1), To: day(19)}
}

func TestMergeInvariantAndAverage(t *testing.T) {
	store := newStubStore()
	r := newTestReconciler(store)

	// Equal fetch times give equal weights, so the merge is a plain mean.
	res, err := r.Merge(context.Background(), testRange(), []models.RawPriceRecord{
		record("agmarknet", 10, 2000, 2100, 2200),
		record("enam", 10, 2020, 2110, 2180),
	}, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(res.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(res.Points))
	}
	p := res.Points[0]
	if p.Average != 2105 {
		t.Fatalf("expected average 2105, got %v", p.Average)
	}
	if p.Min > p.Average || p.Average > p.Max {
		t.Fatalf("invariant violated: min=%v avg=%v max=%v", p.Min, p.Average, p.Max)
	}
	if len(p.SourceIDs) != 2 {
		t.Fatalf("expected both sources recorded, got %v", p.SourceIDs)
	}
}

func TestMergeIdempotent(t *testing.T) {
	store := newStubStore()
	r := newTestReconciler(store)
	recs := []models.RawPriceRecord{
		record("agmarknet", 10, 2000, 2100, 2200),
		record("enam", 11, 2050, 2150, 2250),
	}

	first, err := r.Merge(context.Background(), testRange(), recs, nil)
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	second, err := r.Merge(context.Background(), testRange(), recs, nil)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if len(first.Points) != len(second.Points) {
		t.Fatalf("merge not idempotent: %d vs %d points", len(first.Points), len(second.Points))
	}
	for i := range first.Points {
		if first.Points[i].Average != second.Points[i].Average {
			t.Fatalf("merge not idempotent at %d", i)
		}
	}
	stored := store.prices["wheat:indore"]
	if len(stored) != len(first.Points) {
		t.Fatalf("store not replaced, has %d points", len(stored))
	}
}

func TestMergeKgNormalization(t *testing.T) {
	store := newStubStore()
	r := newTestReconciler(store)
	rec := record("retail", 10, 20, 21, 22)
	rec.Unit = models.UnitKg

	res, err := r.Merge(context.Background(), testRange(), []models.RawPriceRecord{rec}, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	p := res.Points[0]
	if p.Unit != models.UnitQuintal || p.Average != 2100 {
		t.Fatalf("expected 2100/quintal, got %v/%s", p.Average, p.Unit)
	}
	back := p.InUnit(models.UnitKg).InUnit(models.UnitQuintal)
	if back.Average != p.Average {
		t.Fatalf("unit round trip lost value: %v vs %v", back.Average, p.Average)
	}
}

func TestMergeGapInterpolation(t *testing.T) {
	store := newStubStore()
	r := newTestReconciler(store)

	// Days 1,2,3,6,7 present. The 2-day hole (4,5) is within the max gap
	// and gets filled; a longer series gap would stay absent.
	recs := []models.RawPriceRecord{
		record("agmarknet", 1, 1000, 1000, 1000),
		record("agmarknet", 2, 1000, 1000, 1000),
		record("agmarknet", 3, 1000, 1000, 1000),
		record("agmarknet", 6, 1300, 1300, 1300),
		record("agmarknet", 7, 1300, 1300, 1300),
	}
	res, err := r.Merge(context.Background(), testRange(), recs, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(res.Points) != 7 {
		t.Fatalf("expected 7 points after interpolation, got %d", len(res.Points))
	}
	p4, p5 := res.Points[3], res.Points[4]
	if !p4.Interpolated || !p5.Interpolated {
		t.Fatalf("days 4 and 5 should be interpolated")
	}
	if p4.Average != 1100 || p5.Average != 1200 {
		t.Fatalf("linear fill wrong: %v, %v", p4.Average, p5.Average)
	}
}

func TestMergeLongGapStaysAbsent(t *testing.T) {
	store := newStubStore()
	r := newTestReconciler(store)

	recs := []models.RawPriceRecord{
		record("agmarknet", 1, 1000, 1000, 1000),
		record("agmarknet", 12, 1300, 1300, 1300),
	}
	res, err := r.Merge(context.Background(), testRange(), recs, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(res.Points) != 2 {
		t.Fatalf("10-day gap must not be filled, got %d points", len(res.Points))
	}
	for _, p := range res.Points {
		if p.Interpolated {
			t.Fatalf("no point should be interpolated")
		}
	}
}

func TestMergeRejectsMalformed(t *testing.T) {
	store := newStubStore()
	r := newTestReconciler(store)

	bad := record("agmarknet", 10, 2200, 2100, 2000) // min > max
	negative := record("enam", 11, -5, 10, 20)
	badUnit := record("retail", 12, 10, 11, 12)
	badUnit.Unit = "tonne"
	good := record("agmarknet", 13, 2000, 2100, 2200)

	res, err := r.Merge(context.Background(), testRange(), []models.RawPriceRecord{bad, negative, badUnit, good}, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(res.Rejected) != 3 {
		t.Fatalf("expected 3 rejections, got %d: %+v", len(res.Rejected), res.Rejected)
	}
	if len(res.Points) != 1 {
		t.Fatalf("expected 1 surviving point, got %d", len(res.Points))
	}
}

func TestMergeAllInvalid(t *testing.T) {
	store := newStubStore()
	r := newTestReconciler(store)

	bad := record("agmarknet", 10, 0, 0, 0)
	_, err := r.Merge(context.Background(), testRange(), []models.RawPriceRecord{bad}, nil)
	if err != models.ErrNoValidRecords {
		t.Fatalf("expected ErrNoValidRecords, got %v", err)
	}
}

func TestMergeConflictResolution(t *testing.T) {
	store := newStubStore()
	r := newTestReconciler(store)

	stale := record("agmarknet", 10, 1900, 2000, 2100)
	stale.FetchedAt = testNow.Add(-48 * time.Hour)
	fresh := record("enam", 10, 2400, 2500, 2600) // 25% apart, over threshold

	res, err := r.Merge(context.Background(), testRange(), []models.RawPriceRecord{stale, fresh}, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if res.Conflicts != 1 {
		t.Fatalf("expected 1 conflict, got %d", res.Conflicts)
	}
	p := res.Points[0]
	if p.Average != 2500 {
		t.Fatalf("fresher source should win outright, got %v", p.Average)
	}
	if len(p.SourceIDs) != 2 {
		t.Fatalf("all contributing sources must be recorded, got %v", p.SourceIDs)
	}
	found := false
	for _, rej := range res.Rejected {
		if rej.SourceID == "agmarknet" {
			found = true
		}
	}
	if !found {
		t.Fatalf("losing record must appear in the rejection report")
	}
}

func TestMergeNationalBroadcast(t *testing.T) {
	store := newStubStore()
	r := newTestReconciler(store)

	market := record("agmarknet", 10, 2000, 2000, 2000)
	national := record("macrostat", 10, 3000, 3000, 3000)
	national.Key = models.SeriesKey{Commodity: "wheat"}

	res, err := r.Merge(context.Background(), testRange(), []models.RawPriceRecord{market, national}, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	p := res.Points[0]
	// Equal fetch times: market weight 1, national weight 0.25.
	want := (2000 + 0.25*3000) / 1.25
	if diff := p.Average - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected %v, got %v", want, p.Average)
	}
}

func TestMergeNationalWithoutMarketRejected(t *testing.T) {
	store := newStubStore()
	r := newTestReconciler(store)

	national := record("macrostat", 10, 3000, 3000, 3000)
	national.Key = models.SeriesKey{Commodity: "soybean"}

	res, err := r.Merge(context.Background(), testRange(), []models.RawPriceRecord{national,
		record("agmarknet", 10, 2000, 2000, 2000)}, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].SourceID != "macrostat" {
		t.Fatalf("national record without any market series must be rejected: %+v", res.Rejected)
	}
}

func TestMergeWeather(t *testing.T) {
	store := newStubStore()
	r := newTestReconciler(store)

	recs := []models.RawWeatherRecord{
		{SourceID: "imd", FetchedAt: testNow.Add(-time.Hour), LocationID: "indore", Date: day(10), TempC: 30, RainfallMM: 4, Condition: "cloudy"},
		{SourceID: "owm", FetchedAt: testNow, LocationID: "indore", Date: day(10), TempC: 32, RainfallMM: 6, Condition: "rain"},
		{SourceID: "owm", FetchedAt: testNow, LocationID: "indore", Date: day(11), TempC: 28, RainfallMM: -1},
	}
	res, err := r.Merge(context.Background(), testRange(), nil, recs)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(res.Weather) != 1 {
		t.Fatalf("expected 1 weather point, got %d", len(res.Weather))
	}
	w := res.Weather[0]
	if w.TempC != 31 || w.RainfallMM != 5 {
		t.Fatalf("weather averages wrong: %+v", w)
	}
	if w.Condition != "rain" {
		t.Fatalf("most recent condition should win, got %q", w.Condition)
	}
	if len(res.Rejected) != 1 {
		t.Fatalf("negative rainfall must be rejected")
	}
}

package aggregate

import (
	"context"
	"testing"
	"time"

	"MandiPulse/internal/domain/models"
)

type stubStore struct {
	points map[string][]models.PricePoint
}

func newStubStore() *stubStore {
	return &stubStore{points: make(map[string][]models.PricePoint)}
}

func (s *stubStore) ReplacePricePoints(_ context.Context, key models.SeriesKey, _ models.DateRange, points []models.PricePoint) error {
	s.points[key.String()] = points
	return nil
}

func (s *stubStore) GetPricePoints(_ context.Context, key models.SeriesKey, rng models.DateRange) ([]models.PricePoint, error) {
	var out []models.PricePoint
	for _, p := range s.points[key.String()] {
		if rng.Contains(p.Date) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubStore) GetLatestPricePoints(_ context.Context, key models.SeriesKey, n int) ([]models.PricePoint, error) {
	pts := s.points[key.String()]
	if len(pts) > n {
		pts = pts[len(pts)-n:]
	}
	return pts, nil
}

func (s *stubStore) LastUpdated(_ context.Context, key models.SeriesKey) (time.Time, error) {
	pts := s.points[key.String()]
	if len(pts) == 0 {
		return time.Time{}, nil
	}
	return pts[len(pts)-1].Date, nil
}

func (s *stubStore) ReplaceWeatherPoints(context.Context, string, models.DateRange, []models.WeatherPoint) error {
	return nil
}

func (s *stubStore) GetWeatherPoints(context.Context, string, models.DateRange) ([]models.WeatherPoint, error) {
	return nil, nil
}

func (s *stubStore) Health(context.Context) error { return nil }
func (s *stubStore) Close() error                 { return nil }

var testNow = time.Date(2024, 10, 20, 12, 0, 0, 0, time.UTC)

func point(commodity, market string, date time.Time, avg float64) models.PricePoint {
	return models.PricePoint{
		Key:  models.SeriesKey{Commodity: commodity, Market: market},
		Date: date, Unit: models.UnitQuintal,
		Min: avg * 0.95, Max: avg * 1.05, Average: avg,
	}
}

func addPoint(store *stubStore, p models.PricePoint) {
	store.points[p.Key.String()] = append(store.points[p.Key.String()], p)
}

func newTestService(store *stubStore, cfg Config) *Service {
	return New(store, cfg, WithClock(func() time.Time { return testNow }))
}

func TestHeatmapExcludesNoDataMarkets(t *testing.T) {
	store := newStubStore()
	asOf := models.Day(testNow)
	addPoint(store, point("wheat", "a", asOf, 100))
	addPoint(store, point("wheat", "b", asOf, 110))
	// Market c has no data and must not drag the average to zero.

	svc := newTestService(store, Config{
		Markets: []string{"a", "b", "c"},
		States:  map[string]string{"a": "MP", "b": "MP", "c": "MP"},
	})
	snaps, err := svc.Heatmap(context.Background(), "wheat", asOf)
	if err != nil {
		t.Fatalf("heatmap: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected 1 state, got %d", len(snaps))
	}
	if snaps[0].AveragePrice != 105 {
		t.Fatalf("expected 105, got %v", snaps[0].AveragePrice)
	}
	if snaps[0].MarketCount != 2 {
		t.Fatalf("expected 2 contributing markets, got %d", snaps[0].MarketCount)
	}
}

func TestHeatmapOmitsEmptyStates(t *testing.T) {
	store := newStubStore()
	asOf := models.Day(testNow)
	addPoint(store, point("wheat", "a", asOf, 100))

	svc := newTestService(store, Config{
		Markets: []string{"a", "b"},
		States:  map[string]string{"a": "MP", "b": "UP"},
	})
	snaps, err := svc.Heatmap(context.Background(), "wheat", asOf)
	if err != nil {
		t.Fatalf("heatmap: %v", err)
	}
	if len(snaps) != 1 || snaps[0].StateID != "MP" {
		t.Fatalf("state with no reporting market must be omitted: %+v", snaps)
	}
}

func TestHeatmapUsesLatestWithinLookback(t *testing.T) {
	store := newStubStore()
	asOf := models.Day(testNow)
	addPoint(store, point("wheat", "a", asOf.AddDate(0, 0, -3), 90))
	addPoint(store, point("wheat", "a", asOf.AddDate(0, 0, -1), 95))

	svc := newTestService(store, Config{
		Markets: []string{"a"},
		States:  map[string]string{"a": "MP"},
	})
	snaps, err := svc.Heatmap(context.Background(), "wheat", asOf)
	if err != nil {
		t.Fatalf("heatmap: %v", err)
	}
	if snaps[0].AveragePrice != 95 {
		t.Fatalf("expected latest price 95, got %v", snaps[0].AveragePrice)
	}
}

func TestCompareAlignsWithNilGaps(t *testing.T) {
	store := newStubStore()
	d1 := models.Day(testNow).AddDate(0, 0, -2)
	d2 := models.Day(testNow).AddDate(0, 0, -1)
	addPoint(store, point("wheat", "a", d1, 100))
	addPoint(store, point("wheat", "a", d2, 102))
	addPoint(store, point("wheat", "b", d2, 110))

	svc := newTestService(store, Config{})
	cmp, err := svc.CompareMarkets(context.Background(), "wheat", []string{"a", "b"},
		models.DateRange{From: d1, To: d2})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(cmp.Dates) != 2 {
		t.Fatalf("expected 2 axis dates, got %d", len(cmp.Dates))
	}
	b := cmp.Series["wheat:b"]
	if b[0] != nil {
		t.Fatalf("missing data must be nil, got %v", *b[0])
	}
	if b[1] == nil || *b[1] != 110 {
		t.Fatalf("expected 110 on day 2")
	}
	a := cmp.Series["wheat:a"]
	if a[0] == nil || *a[0] != 100 || a[1] == nil || *a[1] != 102 {
		t.Fatalf("series a misaligned: %+v", a)
	}
}

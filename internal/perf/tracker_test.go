package perf

import (
	"context"
	"math"
	"testing"
	"time"

	"MandiPulse/internal/domain/models"
	"MandiPulse/pkg/util"
)

type stubForecasts struct {
	saved []*models.Forecast
}

func (s *stubForecasts) Save(_ context.Context, f *models.Forecast) error {
	s.saved = append(s.saved, f)
	return nil
}

func (s *stubForecasts) Matured(_ context.Context, key models.SeriesKey, rng models.DateRange) ([]models.Forecast, error) {
	var out []models.Forecast
	for _, f := range s.saved {
		if f.Key == key && rng.Contains(f.TargetDate) {
			out = append(out, *f)
		}
	}
	return out, nil
}

type stubObservations struct {
	obs map[string]models.Observation
}

func newStubObservations() *stubObservations {
	return &stubObservations{obs: make(map[string]models.Observation)}
}

func (s *stubObservations) Put(_ context.Context, o models.Observation) error {
	s.obs[o.Key.String()+"|"+util.DayKey(o.Date)] = o
	return nil
}

func (s *stubObservations) Get(_ context.Context, key models.SeriesKey, date time.Time) (models.Observation, bool, error) {
	o, ok := s.obs[key.String()+"|"+util.DayKey(date)]
	return o, ok, nil
}

type stubPerformance struct {
	records map[string][]models.PerformanceRecord
}

func newStubPerformance() *stubPerformance {
	return &stubPerformance{records: make(map[string][]models.PerformanceRecord)}
}

func (s *stubPerformance) Replace(_ context.Context, key models.SeriesKey, records []models.PerformanceRecord) error {
	s.records[key.String()] = append([]models.PerformanceRecord{}, records...)
	return nil
}

func (s *stubPerformance) Get(_ context.Context, key models.SeriesKey) ([]models.PerformanceRecord, error) {
	return s.records[key.String()], nil
}

var (
	testKey = models.SeriesKey{Commodity: "wheat", Market: "indore"}
	testNow = time.Date(2024, 10, 20, 12, 0, 0, 0, time.UTC)
)

func forecastFor(model models.ModelKind, target time.Time, predicted float64, issued time.Time) *models.Forecast {
	return &models.Forecast{
		Key:              testKey,
		Model:            model,
		IssuedAt:         issued,
		AsOf:             target.AddDate(0, 0, -7),
		HorizonDays:      7,
		TargetDate:       target,
		PredictedAverage: predicted,
	}
}

func TestRecomputeRMSEAndImprovement(t *testing.T) {
	forecasts := &stubForecasts{}
	observations := newStubObservations()
	performance := newStubPerformance()
	tr := New(forecasts, observations, performance, WithClock(func() time.Time { return testNow }))

	target := models.Day(testNow).AddDate(0, 0, -2)
	issued := target.AddDate(0, 0, -7)
	forecasts.saved = []*models.Forecast{
		forecastFor(models.ModelBaseline, target, 100, issued),
		forecastFor(models.ModelSentimentAdjusted, target, 102.5, issued),
	}
	if err := tr.RecordObservation(context.Background(), testKey, target, 103); err != nil {
		t.Fatalf("record observation: %v", err)
	}

	records, err := tr.Recompute(context.Background(), testKey, 30)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	byModel := make(map[models.ModelKind]models.PerformanceRecord)
	for _, r := range records {
		byModel[r.Model] = r
	}
	if rmse := byModel[models.ModelBaseline].RMSE; rmse != 3 {
		t.Fatalf("baseline rmse: expected 3, got %v", rmse)
	}
	if rmse := byModel[models.ModelSentimentAdjusted].RMSE; rmse != 0.5 {
		t.Fatalf("adjusted rmse: expected 0.5, got %v", rmse)
	}

	summary, err := tr.Summary(context.Background(), testKey)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if math.Abs(summary.Improvement-0.8333) > 0.001 {
		t.Fatalf("improvement: expected ~0.833, got %v", summary.Improvement)
	}
}

func TestRecomputeReplacesNotDuplicates(t *testing.T) {
	forecasts := &stubForecasts{}
	observations := newStubObservations()
	performance := newStubPerformance()
	tr := New(forecasts, observations, performance, WithClock(func() time.Time { return testNow }))

	target := models.Day(testNow).AddDate(0, 0, -2)
	issued := target.AddDate(0, 0, -7)
	forecasts.saved = []*models.Forecast{
		forecastFor(models.ModelBaseline, target, 100, issued),
		// A later reissue for the same target date supersedes the first.
		forecastFor(models.ModelBaseline, target, 101, issued.Add(time.Hour)),
	}
	if err := tr.RecordObservation(context.Background(), testKey, target, 103); err != nil {
		t.Fatalf("record observation: %v", err)
	}

	records, err := tr.Recompute(context.Background(), testKey, 30)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].SampleCount != 1 {
		t.Fatalf("same target date must be scored once, got %d samples", records[0].SampleCount)
	}
	if records[0].RMSE != 2 {
		t.Fatalf("latest issue should win: expected rmse 2, got %v", records[0].RMSE)
	}

	if _, err := tr.Recompute(context.Background(), testKey, 30); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if got := len(performance.records[testKey.String()]); got != 1 {
		t.Fatalf("rescoring must replace, not append: %d records", got)
	}
}

func TestRecomputeEmptyWindowRetiresStaleRecords(t *testing.T) {
	performance := newStubPerformance()
	performance.records[testKey.String()] = []models.PerformanceRecord{
		{Key: testKey, Model: models.ModelBaseline, RMSE: 3, SampleCount: 5},
	}
	tr := New(&stubForecasts{}, newStubObservations(), performance, WithClock(func() time.Time { return testNow }))

	records, err := tr.Recompute(context.Background(), testKey, 30)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty record set, got %d", len(records))
	}

	summary, err := tr.Summary(context.Background(), testKey)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Baseline != nil {
		t.Fatalf("stale baseline record survived an empty recompute cycle")
	}
}

func TestRecomputeEmptyWindow(t *testing.T) {
	tr := New(&stubForecasts{}, newStubObservations(), newStubPerformance(), WithClock(func() time.Time { return testNow }))
	records, err := tr.Recompute(context.Background(), testKey, 30)
	if err != nil {
		t.Fatalf("empty window must not fail: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty record set, got %d", len(records))
	}
}

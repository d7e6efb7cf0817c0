package forecast

import (
	"context"
	"errors"
	"testing"
	"time"

	"MandiPulse/internal/domain/models"
)

type stubCanonical struct {
	points  map[string][]models.PricePoint
	weather map[string][]models.WeatherPoint
}

func newStubCanonical() *stubCanonical {
	return &stubCanonical{
		points:  make(map[string][]models.PricePoint),
		weather: make(map[string][]models.WeatherPoint),
	}
}

func (s *stubCanonical) ReplacePricePoints(_ context.Context, key models.SeriesKey, _ models.DateRange, points []models.PricePoint) error {
	s.points[key.String()] = points
	return nil
}

func (s *stubCanonical) GetPricePoints(_ context.Context, key models.SeriesKey, rng models.DateRange) ([]models.PricePoint, error) {
	var out []models.PricePoint
	for _, p := range s.points[key.String()] {
		if rng.Contains(p.Date) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubCanonical) GetLatestPricePoints(_ context.Context, key models.SeriesKey, n int) ([]models.PricePoint, error) {
	pts := s.points[key.String()]
	if len(pts) > n {
		pts = pts[len(pts)-n:]
	}
	return pts, nil
}

func (s *stubCanonical) LastUpdated(_ context.Context, key models.SeriesKey) (time.Time, error) {
	pts := s.points[key.String()]
	if len(pts) == 0 {
		return time.Time{}, nil
	}
	return pts[len(pts)-1].Date, nil
}

func (s *stubCanonical) ReplaceWeatherPoints(_ context.Context, loc string, _ models.DateRange, points []models.WeatherPoint) error {
	s.weather[loc] = points
	return nil
}

func (s *stubCanonical) GetWeatherPoints(_ context.Context, loc string, rng models.DateRange) ([]models.WeatherPoint, error) {
	var out []models.WeatherPoint
	for _, w := range s.weather[loc] {
		if rng.Contains(w.Date) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *stubCanonical) Health(context.Context) error { return nil }
func (s *stubCanonical) Close() error                 { return nil }

type stubSentiments struct {
	scores []models.SentimentScore
}

func (s *stubSentiments) Put(_ context.Context, sc models.SentimentScore) error {
	s.scores = append(s.scores, sc)
	return nil
}

func (s *stubSentiments) Recent(_ context.Context, commodity string, asOf time.Time, days int) ([]models.SentimentScore, error) {
	from := asOf.AddDate(0, 0, -days)
	var out []models.SentimentScore
	for _, sc := range s.scores {
		if sc.Commodity == commodity && sc.Date.After(from) && !sc.Date.After(asOf) {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *stubSentiments) Distribution(_ context.Context, commodity string, asOf time.Time, days int) (models.SentimentDistribution, error) {
	return models.SentimentDistribution{}, nil
}

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

var (
	testKey = models.SeriesKey{Commodity: "wheat", Market: "indore"}
	testNow = time.Date(2024, 10, 20, 12, 0, 0, 0, time.UTC)
)

func seedSeries(store *stubCanonical, days int, start float64, step float64) {
	asOf := models.Day(testNow)
	pts := make([]models.PricePoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		v := start + float64(days-1-i)*step
		pts = append(pts, models.PricePoint{
			Key:     testKey,
			Date:    asOf.AddDate(0, 0, -i),
			Unit:    models.UnitQuintal,
			Min:     v * 0.95,
			Max:     v * 1.05,
			Average: v,
		})
	}
	store.points[testKey.String()] = pts
}

func newTestEngine(store *stubCanonical, sentiments *stubSentiments, forecasts *stubForecasts) *Engine {
	return New(store, sentiments, forecasts, Config{}, WithClock(func() time.Time { return testNow }))
}

func TestPredictInvalidHorizon(t *testing.T) {
	e := newTestEngine(newStubCanonical(), &stubSentiments{}, &stubForecasts{})
	for _, h := range []int{0, 6, 366, -1} {
		if _, err := e.Predict(context.Background(), testKey, h, time.Time{}); !errors.Is(err, models.ErrInvalidHorizon) {
			t.Fatalf("horizon %d: expected ErrInvalidHorizon, got %v", h, err)
		}
	}
}

func TestPredictInsufficientHistory(t *testing.T) {
	store := newStubCanonical()
	seedSeries(store, 10, 2000, 1)
	e := newTestEngine(store, &stubSentiments{}, &stubForecasts{})
	if _, err := e.Predict(context.Background(), testKey, 7, time.Time{}); !errors.Is(err, models.ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestPredictDeterministic(t *testing.T) {
	store := newStubCanonical()
	seedSeries(store, 60, 2000, 2)
	e := newTestEngine(store, &stubSentiments{}, &stubForecasts{})

	first, err := e.Predict(context.Background(), testKey, 30, time.Time{})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	second, err := e.Predict(context.Background(), testKey, 30, time.Time{})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if first.Baseline.PredictedAverage != second.Baseline.PredictedAverage {
		t.Fatalf("baseline not deterministic: %v vs %v",
			first.Baseline.PredictedAverage, second.Baseline.PredictedAverage)
	}
	if first.Adjusted.PredictedAverage != second.Adjusted.PredictedAverage {
		t.Fatalf("adjusted not deterministic")
	}
}

func TestPredictNoLeakage(t *testing.T) {
	store := newStubCanonical()
	seedSeries(store, 60, 2000, 2)
	e := newTestEngine(store, &stubSentiments{}, &stubForecasts{})
	asOf := models.Day(testNow)

	before, err := e.Predict(context.Background(), testKey, 30, asOf)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	// Data dated after the cutoff must not change the output.
	store.points[testKey.String()] = append(store.points[testKey.String()], models.PricePoint{
		Key: testKey, Date: asOf.AddDate(0, 0, 1), Unit: models.UnitQuintal,
		Min: 9000, Max: 11000, Average: 10000,
	})
	after, err := e.Predict(context.Background(), testKey, 30, asOf)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if before.Baseline.PredictedAverage != after.Baseline.PredictedAverage {
		t.Fatalf("future data leaked into forecast: %v vs %v",
			before.Baseline.PredictedAverage, after.Baseline.PredictedAverage)
	}
}

func TestPredictBandAndDrivers(t *testing.T) {
	store := newStubCanonical()
	seedSeries(store, 60, 2000, 2)
	sentiments := &stubSentiments{}
	asOf := models.Day(testNow)
	sentiments.scores = []models.SentimentScore{
		{Commodity: "wheat", Date: asOf.AddDate(0, 0, -1), Score: 0.6},
		{Commodity: "wheat", Date: asOf.AddDate(0, 0, -2), Score: 0.4},
	}
	forecasts := &stubForecasts{}
	e := newTestEngine(store, sentiments, forecasts)

	pair, err := e.Predict(context.Background(), testKey, 30, asOf)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for _, f := range []*models.Forecast{pair.Baseline, pair.Adjusted} {
		if f.PredictedMin > f.PredictedAverage || f.PredictedAverage > f.PredictedMax {
			t.Fatalf("%s band inverted: %v %v %v", f.Model, f.PredictedMin, f.PredictedAverage, f.PredictedMax)
		}
	}
	if pair.Adjusted.PredictedAverage <= pair.Baseline.PredictedAverage {
		t.Fatalf("positive sentiment should lift the adjusted forecast")
	}
	drivers := pair.Adjusted.Drivers
	if len(drivers) == 0 {
		t.Fatalf("adjusted forecast must carry drivers")
	}
	for i := 1; i < len(drivers); i++ {
		if drivers[i].Weight > drivers[i-1].Weight {
			t.Fatalf("drivers not ranked by weight: %+v", drivers)
		}
	}
	if len(forecasts.saved) != 2 {
		t.Fatalf("both forecasts should be saved, got %d", len(forecasts.saved))
	}
}

func TestPredictStaleInput(t *testing.T) {
	store := newStubCanonical()
	seedSeries(store, 60, 2000, 2)
	e := newTestEngine(store, &stubSentiments{}, &stubForecasts{})

	// Predict a week past the last canonical point: stale warning, not a
	// hard failure.
	asOf := models.Day(testNow).AddDate(0, 0, 7)
	pair, err := e.Predict(context.Background(), testKey, 30, asOf)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !pair.Baseline.StaleInput || !pair.Adjusted.StaleInput {
		t.Fatalf("expected stale input flag")
	}
}

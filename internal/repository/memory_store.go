package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"MandiPulse/internal/domain/models"
	domrepo "MandiPulse/internal/domain/repository"
	"MandiPulse/pkg/util"
)

// MemoryCanonicalStore keeps canonical series in process memory. Used as
// the development/test backend behind the same interface as ClickHouse.
type MemoryCanonicalStore struct {
	mu      sync.RWMutex
	prices  map[string]map[string]models.PricePoint
	weather map[string]map[string]models.WeatherPoint
}

func NewMemoryCanonicalStore() *MemoryCanonicalStore {
	return &MemoryCanonicalStore{
		prices:  make(map[string]map[string]models.PricePoint),
		weather: make(map[string]map[string]models.WeatherPoint),
	}
}

func (s *MemoryCanonicalStore) ReplacePricePoints(_ context.Context, key models.SeriesKey, rng models.DateRange, points []models.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	series := s.prices[key.String()]
	if series == nil {
		series = make(map[string]models.PricePoint)
		s.prices[key.String()] = series
	}
	for d, p := range series {
		if rng.Contains(p.Date) {
			delete(series, d)
		}
	}
	for _, p := range points {
		series[util.DayKey(p.Date)] = p
	}
	return nil
}

func (s *MemoryCanonicalStore) GetPricePoints(_ context.Context, key models.SeriesKey, rng models.DateRange) ([]models.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PricePoint
	for _, p := range s.prices[key.String()] {
		if rng.Contains(p.Date) {
			out = append(out, p)
		}
	}
	sortPoints(out)
	return out, nil
}

func (s *MemoryCanonicalStore) GetLatestPricePoints(_ context.Context, key models.SeriesKey, n int) ([]models.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PricePoint
	for _, p := range s.prices[key.String()] {
		out = append(out, p)
	}
	sortPoints(out)
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (s *MemoryCanonicalStore) LastUpdated(_ context.Context, key models.SeriesKey) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last time.Time
	for _, p := range s.prices[key.String()] {
		if p.Date.After(last) {
			last = p.Date
		}
	}
	return last, nil
}

func (s *MemoryCanonicalStore) ReplaceWeatherPoints(_ context.Context, locationID string, rng models.DateRange, points []models.WeatherPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	series := s.weather[locationID]
	if series == nil {
		series = make(map[string]models.WeatherPoint)
		s.weather[locationID] = series
	}
	for d, w := range series {
		if rng.Contains(w.Date) {
			delete(series, d)
		}
	}
	for _, w := range points {
		series[util.DayKey(w.Date)] = w
	}
	return nil
}

func (s *MemoryCanonicalStore) GetWeatherPoints(_ context.Context, locationID string, rng models.DateRange) ([]models.WeatherPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.WeatherPoint
	for _, w := range s.weather[locationID] {
		if rng.Contains(w.Date) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *MemoryCanonicalStore) Health(context.Context) error { return nil }
func (s *MemoryCanonicalStore) Close() error                 { return nil }

func sortPoints(points []models.PricePoint) {
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
}

// MemorySentimentStore keeps sentiment scores in memory, one per
// (commodity, date): a later Put for the same day overwrites.
type MemorySentimentStore struct {
	mu     sync.RWMutex
	scores map[string]map[string]models.SentimentScore
}

func NewMemorySentimentStore() *MemorySentimentStore {
	return &MemorySentimentStore{scores: make(map[string]map[string]models.SentimentScore)}
}

func (s *MemorySentimentStore) Put(_ context.Context, sc models.SentimentScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate := s.scores[sc.Commodity]
	if byDate == nil {
		byDate = make(map[string]models.SentimentScore)
		s.scores[sc.Commodity] = byDate
	}
	sc.Date = models.Day(sc.Date)
	byDate[util.DayKey(sc.Date)] = sc
	return nil
}

func (s *MemorySentimentStore) Recent(_ context.Context, commodity string, asOf time.Time, days int) ([]models.SentimentScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	from := models.Day(asOf).AddDate(0, 0, -days)
	var out []models.SentimentScore
	for _, sc := range s.scores[commodity] {
		if sc.Date.After(from) && !sc.Date.After(asOf) {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *MemorySentimentStore) Distribution(ctx context.Context, commodity string, asOf time.Time, days int) (models.SentimentDistribution, error) {
	scores, err := s.Recent(ctx, commodity, asOf, days)
	if err != nil {
		return models.SentimentDistribution{}, err
	}
	var d models.SentimentDistribution
	for _, sc := range scores {
		switch models.LabelForScore(sc.Score) {
		case models.SentimentPositive:
			d.Positive++
		case models.SentimentNegative:
			d.Negative++
		default:
			d.Neutral++
		}
	}
	return d, nil
}

// MemoryForecastStore keeps issued forecasts for later scoring.
type MemoryForecastStore struct {
	mu    sync.RWMutex
	saved []models.Forecast
}

func NewMemoryForecastStore() *MemoryForecastStore { return &MemoryForecastStore{} }

func (s *MemoryForecastStore) Save(_ context.Context, f *models.Forecast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, *f)
	return nil
}

func (s *MemoryForecastStore) Matured(_ context.Context, key models.SeriesKey, rng models.DateRange) ([]models.Forecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Forecast
	for _, f := range s.saved {
		if f.Key == key && rng.Contains(f.TargetDate) {
			out = append(out, f)
		}
	}
	return out, nil
}

// MemoryObservationStore keeps ground-truth observations, one per
// (series, date).
type MemoryObservationStore struct {
	mu  sync.RWMutex
	obs map[string]models.Observation
}

func NewMemoryObservationStore() *MemoryObservationStore {
	return &MemoryObservationStore{obs: make(map[string]models.Observation)}
}

func obsKey(key models.SeriesKey, date time.Time) string {
	return key.String() + "|" + util.DayKey(date)
}

func (s *MemoryObservationStore) Put(_ context.Context, o models.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.Date = models.Day(o.Date)
	s.obs[obsKey(o.Key, o.Date)] = o
	return nil
}

func (s *MemoryObservationStore) Get(_ context.Context, key models.SeriesKey, date time.Time) (models.Observation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.obs[obsKey(key, date)]
	return o, ok, nil
}

// MemoryPerformanceStore keeps only the current records per series.
type MemoryPerformanceStore struct {
	mu      sync.RWMutex
	records map[string][]models.PerformanceRecord
}

func NewMemoryPerformanceStore() *MemoryPerformanceStore {
	return &MemoryPerformanceStore{records: make(map[string][]models.PerformanceRecord)}
}

func (s *MemoryPerformanceStore) Replace(_ context.Context, key models.SeriesKey, records []models.PerformanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key.String()] = append([]models.PerformanceRecord{}, records...)
	return nil
}

func (s *MemoryPerformanceStore) Get(_ context.Context, key models.SeriesKey) ([]models.PerformanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PerformanceRecord{}, s.records[key.String()]...), nil
}

// MemoryAlertStore keeps alerts by id.
type MemoryAlertStore struct {
	mu sync.RWMutex
	m  map[string]models.PriceAlert
}

func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{m: make(map[string]models.PriceAlert)}
}

func (s *MemoryAlertStore) Save(_ context.Context, a *models.PriceAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[a.ID] = *a
	return nil
}

func (s *MemoryAlertStore) Get(_ context.Context, id string) (*models.PriceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.m[id]
	if !ok {
		return nil, models.ErrAlertNotFound
	}
	cp := a
	return &cp, nil
}

func (s *MemoryAlertStore) Update(_ context.Context, a *models.PriceAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[a.ID]; !ok {
		return models.ErrAlertNotFound
	}
	s.m[a.ID] = *a
	return nil
}

func (s *MemoryAlertStore) ListByUser(_ context.Context, userID string) ([]*models.PriceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.PriceAlert
	for _, a := range s.m {
		if a.UserID == userID {
			cp := a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryAlertStore) ListActiveForKey(_ context.Context, key models.SeriesKey) ([]*models.PriceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.PriceAlert
	for _, a := range s.m {
		if a.Key == key && a.Status == models.AlertActive {
			cp := a
			out = append(out, &cp)
		}
	}
	return out, nil
}

var (
	_ domrepo.CanonicalStore   = (*MemoryCanonicalStore)(nil)
	_ domrepo.SentimentStore   = (*MemorySentimentStore)(nil)
	_ domrepo.ForecastStore    = (*MemoryForecastStore)(nil)
	_ domrepo.ObservationStore = (*MemoryObservationStore)(nil)
	_ domrepo.PerformanceStore = (*MemoryPerformanceStore)(nil)
	_ domrepo.AlertStore       = (*MemoryAlertStore)(nil)
)

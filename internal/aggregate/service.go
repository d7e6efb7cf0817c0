package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"MandiPulse/internal/domain/models"
	domrepo "MandiPulse/internal/domain/repository"
	"MandiPulse/pkg/cache"
	applogger "MandiPulse/pkg/logger"
	"MandiPulse/pkg/util"
)

// latestLookbackDays bounds how far back "latest price" may reach when a
// market has not traded recently.
const latestLookbackDays = 7

// Config maps the market universe onto states.
type Config struct {
	Markets []string
	// States maps a market to its state id.
	States      map[string]string
	SnapshotTTL time.Duration
}

// Service computes the derived regional views: state heatmaps and
// market comparisons. Everything here is ephemeral and recomputed from
// canonical points; snapshots are cached, never stored.
type Service struct {
	store domrepo.CanonicalStore
	cache cache.Service
	log   *applogger.Logger
	cfg   Config
	now   func() time.Time
}

type Option func(*Service)

// WithCache enables snapshot caching.
func WithCache(c cache.Service) Option {
	return func(s *Service) { s.cache = c }
}

func WithLogger(l *applogger.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store domrepo.CanonicalStore, cfg Config, opts ...Option) *Service {
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 5 * time.Minute
	}
	s := &Service{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Heatmap aggregates the latest price of every reporting market into one
// snapshot per state. Markets with no data are excluded from their
// state's average, never counted as zero; a state with no reporting
// market is omitted entirely.
func (s *Service) Heatmap(ctx context.Context, commodity string, asOf time.Time) ([]models.RegionalSnapshot, error) {
	if asOf.IsZero() {
		asOf = models.Day(s.now())
	} else {
		asOf = models.Day(asOf)
	}

	cacheKey := cache.Key("heatmap", commodity, util.DayKey(asOf))
	if s.cache != nil {
		var cached []models.RegionalSnapshot
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	type agg struct {
		sum   float64
		count int
	}
	byState := make(map[string]*agg)
	for _, market := range s.cfg.Markets {
		state, ok := s.cfg.States[market]
		if !ok {
			continue
		}
		key := models.SeriesKey{Commodity: commodity, Market: market}
		latest, found, err := s.latestAverage(ctx, key, asOf)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		a := byState[state]
		if a == nil {
			a = &agg{}
			byState[state] = a
		}
		a.sum += latest
		a.count++
	}

	states := make([]string, 0, len(byState))
	for st := range byState {
		states = append(states, st)
	}
	sort.Strings(states)

	out := make([]models.RegionalSnapshot, 0, len(states))
	for _, st := range states {
		a := byState[st]
		out = append(out, models.RegionalSnapshot{
			StateID:      st,
			Commodity:    commodity,
			AsOf:         asOf,
			AveragePrice: a.sum / float64(a.count),
			MarketCount:  a.count,
		})
	}

	if s.cache != nil && len(out) > 0 {
		if err := s.cache.Set(ctx, cacheKey, out, s.cfg.SnapshotTTL); err != nil && s.log != nil {
			s.log.Warn("cache heatmap failed", applogger.String("key", cacheKey), applogger.Error(err))
		}
	}
	return out, nil
}

func (s *Service) latestAverage(ctx context.Context, key models.SeriesKey, asOf time.Time) (float64, bool, error) {
	rng := models.DateRange{From: asOf.AddDate(0, 0, -latestLookbackDays), To: asOf}
	points, err := s.store.GetPricePoints(ctx, key, rng)
	if err != nil {
		return 0, false, fmt.Errorf("load series %s: %w", key, err)
	}
	var latest *models.PricePoint
	for i := range points {
		p := &points[i]
		if p.Date.After(asOf) {
			continue
		}
		if latest == nil || p.Date.After(latest.Date) {
			latest = p
		}
	}
	if latest == nil {
		return 0, false, nil
	}
	return latest.Average, true, nil
}

// Compare aligns the given series on one shared date axis over rng. The
// axis is the union of dates with data; a series with no point for an
// axis date gets nil, never zero.
func (s *Service) Compare(ctx context.Context, keys []models.SeriesKey, rng models.DateRange) (*models.Comparison, error) {
	series := make(map[string]map[string]float64, len(keys))
	dateSet := make(map[string]time.Time)

	for _, key := range keys {
		points, err := s.store.GetPricePoints(ctx, key, rng)
		if err != nil {
			return nil, fmt.Errorf("load series %s: %w", key, err)
		}
		byDate := make(map[string]float64, len(points))
		for _, p := range points {
			d := util.DayKey(p.Date)
			byDate[d] = p.Average
			dateSet[d] = p.Date
		}
		series[key.String()] = byDate
	}

	dayKeys := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dayKeys = append(dayKeys, d)
	}
	sort.Strings(dayKeys)

	out := &models.Comparison{
		Dates:  make([]time.Time, 0, len(dayKeys)),
		Series: make(map[string][]*float64, len(keys)),
	}
	for _, d := range dayKeys {
		out.Dates = append(out.Dates, dateSet[d])
	}
	for label, byDate := range series {
		col := make([]*float64, 0, len(dayKeys))
		for _, d := range dayKeys {
			if v, ok := byDate[d]; ok {
				vv := v
				col = append(col, &vv)
			} else {
				col = append(col, nil)
			}
		}
		out.Series[label] = col
	}
	return out, nil
}

// CompareMarkets compares one commodity across several markets.
func (s *Service) CompareMarkets(ctx context.Context, commodity string, markets []string, rng models.DateRange) (*models.Comparison, error) {
	keys := make([]models.SeriesKey, 0, len(markets))
	for _, m := range markets {
		keys = append(keys, models.SeriesKey{Commodity: commodity, Market: m})
	}
	return s.Compare(ctx, keys, rng)
}

// CompareCommodities compares several commodities in one market.
func (s *Service) CompareCommodities(ctx context.Context, commodities []string, market string, rng models.DateRange) (*models.Comparison, error) {
	keys := make([]models.SeriesKey, 0, len(commodities))
	for _, c := range commodities {
		keys = append(keys, models.SeriesKey{Commodity: c, Market: market})
	}
	return s.Compare(ctx, keys, rng)
}

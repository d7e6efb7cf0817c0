package reconcile

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"MandiPulse/internal/domain/models"
	domrepo "MandiPulse/internal/domain/repository"
	applogger "MandiPulse/pkg/logger"
	"MandiPulse/pkg/util"
)

// Policy holds the reconciliation knobs. The conflict-resolution
// weighting is explicit and configurable: exponential recency decay with
// the most recent fetch winning ties.
type Policy struct {
	MaxGapDays           int
	ConfidenceHalfLife   time.Duration
	ConflictThresholdPct float64
	MacroWeight          float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxGapDays:           3,
		ConfidenceHalfLife:   24 * time.Hour,
		ConflictThresholdPct: 10,
		MacroWeight:          0.25,
	}
}

// Reconciler merges raw adapter output into canonical series. It is the
// sole writer of the canonical store.
type Reconciler struct {
	store   domrepo.CanonicalStore
	pub     domrepo.Publisher
	metrics domrepo.Metrics
	log     *applogger.Logger
	policy  Policy
	locks   *util.KeyedMutex
	now     func() time.Time
}

type Option func(*Reconciler)

// WithPublisher emits every merged point to the bus.
func WithPublisher(pub domrepo.Publisher) Option {
	return func(r *Reconciler) { r.pub = pub }
}

func WithLogger(l *applogger.Logger) Option {
	return func(r *Reconciler) { r.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func New(store domrepo.CanonicalStore, metrics domrepo.Metrics, policy Policy, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:   store,
		metrics: metrics,
		policy:  policy,
		locks:   util.NewKeyedMutex(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Merge reconciles one atomic batch of raw records for rng. It is
// idempotent: it always merges from the raw record set and replaces the
// canonical range, so re-running the same input yields the same output.
// It fails only when zero valid records remain for the range.
func (r *Reconciler) Merge(ctx context.Context, rng models.DateRange, prices []models.RawPriceRecord, weather []models.RawWeatherRecord) (*models.MergeResult, error) {
	res := &models.MergeResult{}

	valid := r.validatePrices(prices, rng, res)
	byKey := groupByKey(valid)

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, ks := range keys {
		recs := byKey[ks]
		key := recs[0].Key
		points := r.mergeSeries(key, recs, res)
		if len(points) == 0 {
			continue
		}

		l := r.locks.Lock(key.String())
		err := r.store.ReplacePricePoints(ctx, key, rng, points)
		l.Unlock()
		if err != nil {
			return nil, fmt.Errorf("replace points %s: %w", key, err)
		}

		res.Points = append(res.Points, points...)
		r.metrics.RecordMerged(key.String(), len(points))
		if r.pub != nil {
			if err := r.pub.PublishPricePoints(ctx, points); err != nil {
				r.metrics.RecordError("publish_points")
				if r.log != nil {
					r.log.Warn("publish merged points failed", applogger.String("series", key.String()), applogger.Error(err))
				}
			}
		}
	}

	wpoints, err := r.mergeWeather(ctx, rng, weather, res)
	if err != nil {
		return nil, err
	}
	res.Weather = wpoints

	if len(res.Points) == 0 && len(res.Weather) == 0 {
		return nil, models.ErrNoValidRecords
	}
	return res, nil
}

// weightedRecord carries the macro flag through the national broadcast,
// where the record's own key stops telling it apart from market records.
type weightedRecord struct {
	models.RawPriceRecord
	macro bool
}

// validatePrices drops malformed records into the rejection report,
// normalizes the rest to quintal, and resolves national (macro) records
// onto the market keys present in the batch.
func (r *Reconciler) validatePrices(prices []models.RawPriceRecord, rng models.DateRange, res *models.MergeResult) []weightedRecord {
	marketsByCommodity := make(map[string][]models.SeriesKey)
	seen := make(map[models.SeriesKey]bool)
	for _, rec := range prices {
		if rec.Key.IsNational() || seen[rec.Key] {
			continue
		}
		seen[rec.Key] = true
		marketsByCommodity[rec.Key.Commodity] = append(marketsByCommodity[rec.Key.Commodity], rec.Key)
	}

	out := make([]weightedRecord, 0, len(prices))
	for _, rec := range prices {
		if reason := validateRecord(rec, rng); reason != "" {
			res.Rejected = append(res.Rejected, models.RejectedRecord{
				SourceID: rec.SourceID,
				Date:     rec.Date,
				Reason:   reason,
			})
			continue
		}
		rec.Date = models.Day(rec.Date)
		rec = toQuintal(rec)

		if !rec.Key.IsNational() {
			out = append(out, weightedRecord{RawPriceRecord: rec})
			continue
		}
		targets := marketsByCommodity[rec.Key.Commodity]
		if len(targets) == 0 {
			res.Rejected = append(res.Rejected, models.RejectedRecord{
				SourceID: rec.SourceID,
				Date:     rec.Date,
				Reason:   "no market series for national record",
			})
			continue
		}
		for _, key := range targets {
			broadcast := rec
			broadcast.Key = key
			out = append(out, weightedRecord{RawPriceRecord: broadcast, macro: true})
		}
	}
	return out
}

func validateRecord(rec models.RawPriceRecord, rng models.DateRange) string {
	switch {
	case rec.Key.Commodity == "":
		return "missing commodity"
	case rec.Date.IsZero():
		return "missing date"
	case !rng.Contains(models.Day(rec.Date)):
		return "date outside requested range"
	case !models.IsValidUnit(rec.Unit):
		return fmt.Sprintf("unknown unit %q", rec.Unit)
	case rec.Min <= 0 || rec.Max <= 0 || rec.Average <= 0:
		return "non-positive price"
	case rec.Min > rec.Average || rec.Average > rec.Max:
		return "min/average/max out of order"
	default:
		return ""
	}
}

// toQuintal converts a raw record to the internal unit.
func toQuintal(rec models.RawPriceRecord) models.RawPriceRecord {
	if rec.Unit == models.UnitQuintal {
		return rec
	}
	rec.Unit = models.UnitQuintal
	rec.Min *= models.KgPerQuintal
	rec.Max *= models.KgPerQuintal
	rec.Average *= models.KgPerQuintal
	return rec
}

func groupByKey(recs []weightedRecord) map[string][]weightedRecord {
	out := make(map[string][]weightedRecord)
	for _, rec := range recs {
		out[rec.Key.String()] = append(out[rec.Key.String()], rec)
	}
	return out
}

// mergeSeries reconciles one series: weighted per-date averaging,
// conflict resolution, and bounded gap interpolation.
func (r *Reconciler) mergeSeries(key models.SeriesKey, recs []weightedRecord, res *models.MergeResult) []models.PricePoint {
	byDate := make(map[string][]weightedRecord)
	for _, rec := range recs {
		byDate[util.DayKey(rec.Date)] = append(byDate[util.DayKey(rec.Date)], rec)
	}

	dayKeys := make([]string, 0, len(byDate))
	for d := range byDate {
		dayKeys = append(dayKeys, d)
	}
	sort.Strings(dayKeys)

	points := make([]models.PricePoint, 0, len(dayKeys))
	for _, d := range dayKeys {
		group := byDate[d]
		p, conflicted := r.mergeDate(key, group, res)
		if conflicted {
			res.Conflicts++
		}
		points = append(points, p)
	}

	return r.fillGaps(points)
}

// mergeDate collapses all records for one (series key, date). Numeric
// fields are averaged weighted by recency confidence; when sources
// disagree beyond the conflict threshold the highest-confidence record
// wins outright and the losers land in the rejection report. All
// contributing source ids are recorded either way.
func (r *Reconciler) mergeDate(key models.SeriesKey, group []weightedRecord, res *models.MergeResult) (models.PricePoint, bool) {
	now := r.now()

	// Most recent fetch wins exact ties: stable order by FetchedAt.
	sort.SliceStable(group, func(i, j int) bool {
		return group[i].FetchedAt.Before(group[j].FetchedAt)
	})

	var sumW, minW, maxW, avgW float64
	loAvg, hiAvg := math.Inf(1), math.Inf(-1)
	sources := make([]string, 0, len(group))
	seenSrc := make(map[string]bool)
	best := group[len(group)-1]
	bestW := -1.0

	for _, rec := range group {
		w := r.weight(rec, now)
		sumW += w
		minW += w * rec.Min
		maxW += w * rec.Max
		avgW += w * rec.Average
		if rec.Average < loAvg {
			loAvg = rec.Average
		}
		if rec.Average > hiAvg {
			hiAvg = rec.Average
		}
		if w >= bestW {
			bestW = w
			best = rec
		}
		if !seenSrc[rec.SourceID] {
			seenSrc[rec.SourceID] = true
			sources = append(sources, rec.SourceID)
		}
	}
	sort.Strings(sources)

	p := models.PricePoint{
		Key:       key,
		Date:      group[0].Date,
		Unit:      models.UnitQuintal,
		Min:       minW / sumW,
		Max:       maxW / sumW,
		Average:   avgW / sumW,
		SourceIDs: sources,
	}

	conflicted := len(group) > 1 && (hiAvg-loAvg)/p.Average*100 > r.policy.ConflictThresholdPct
	if conflicted {
		// Irreconcilable disagreement: higher-confidence record wins,
		// losers are reported, never silently dropped.
		p.Min, p.Max, p.Average = best.Min, best.Max, best.Average
		for _, rec := range group {
			if rec.SourceID == best.SourceID && rec.FetchedAt.Equal(best.FetchedAt) {
				continue
			}
			res.Rejected = append(res.Rejected, models.RejectedRecord{
				SourceID: rec.SourceID,
				Date:     rec.Date,
				Reason:   fmt.Sprintf("conflict: lost to %s", best.SourceID),
			})
		}
		if r.log != nil {
			r.log.Warn("reconciliation conflict",
				applogger.String("series", key.String()),
				applogger.String("date", util.DayKey(p.Date)),
				applogger.String("winner", best.SourceID),
				applogger.Float64("spread_pct", (hiAvg-loAvg)/p.Average*100),
			)
		}
	}
	return p, conflicted
}

// weight is the recency-confidence of a record: exponential decay with
// the configured half-life, macro (national) records further discounted.
func (r *Reconciler) weight(rec weightedRecord, now time.Time) float64 {
	age := now.Sub(rec.FetchedAt)
	if age < 0 {
		age = 0
	}
	w := math.Pow(0.5, age.Hours()/r.policy.ConfidenceHalfLife.Hours())
	if rec.macro {
		w *= r.policy.MacroWeight
	}
	return w
}

// fillGaps linearly interpolates missing days inside gaps of at most
// MaxGapDays. Longer gaps are left absent: downstream must treat absent
// dates as missing data, not zero.
func (r *Reconciler) fillGaps(points []models.PricePoint) []models.PricePoint {
	if len(points) < 2 {
		return points
	}
	out := make([]models.PricePoint, 0, len(points))
	out = append(out, points[0])
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		gap := util.DaysBetween(prev.Date, cur.Date) - 1
		if gap > 0 && gap <= r.policy.MaxGapDays {
			for j := 1; j <= gap; j++ {
				frac := float64(j) / float64(gap+1)
				out = append(out, models.PricePoint{
					Key:          prev.Key,
					Date:         prev.Date.AddDate(0, 0, j),
					Unit:         models.UnitQuintal,
					Min:          lerp(prev.Min, cur.Min, frac),
					Max:          lerp(prev.Max, cur.Max, frac),
					Average:      lerp(prev.Average, cur.Average, frac),
					SourceIDs:    unionSources(prev.SourceIDs, cur.SourceIDs),
					Interpolated: true,
				})
			}
		}
		out = append(out, cur)
	}
	return out
}

func lerp(a, b, frac float64) float64 { return a + (b-a)*frac }

func unionSources(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// mergeWeather collapses raw weather records per (location, date):
// numeric fields averaged, most recent fetch's condition kept.
func (r *Reconciler) mergeWeather(ctx context.Context, rng models.DateRange, recs []models.RawWeatherRecord, res *models.MergeResult) ([]models.WeatherPoint, error) {
	byLoc := make(map[string]map[string][]models.RawWeatherRecord)
	for _, rec := range recs {
		if rec.LocationID == "" || rec.Date.IsZero() {
			res.Rejected = append(res.Rejected, models.RejectedRecord{
				SourceID: rec.SourceID,
				Date:     rec.Date,
				Reason:   "malformed weather record",
			})
			continue
		}
		if rec.RainfallMM < 0 {
			res.Rejected = append(res.Rejected, models.RejectedRecord{
				SourceID: rec.SourceID,
				Date:     rec.Date,
				Reason:   "negative rainfall",
			})
			continue
		}
		d := util.DayKey(rec.Date)
		if byLoc[rec.LocationID] == nil {
			byLoc[rec.LocationID] = make(map[string][]models.RawWeatherRecord)
		}
		byLoc[rec.LocationID][d] = append(byLoc[rec.LocationID][d], rec)
	}

	locs := make([]string, 0, len(byLoc))
	for loc := range byLoc {
		locs = append(locs, loc)
	}
	sort.Strings(locs)

	var all []models.WeatherPoint
	for _, loc := range locs {
		days := byLoc[loc]
		dayKeys := make([]string, 0, len(days))
		for d := range days {
			dayKeys = append(dayKeys, d)
		}
		sort.Strings(dayKeys)

		points := make([]models.WeatherPoint, 0, len(dayKeys))
		for _, d := range dayKeys {
			group := days[d]
			sort.SliceStable(group, func(i, j int) bool {
				return group[i].FetchedAt.Before(group[j].FetchedAt)
			})
			var temp, rain float64
			for _, rec := range group {
				temp += rec.TempC
				rain += rec.RainfallMM
			}
			n := float64(len(group))
			points = append(points, models.WeatherPoint{
				LocationID: loc,
				Date:       models.Day(group[0].Date),
				TempC:      temp / n,
				RainfallMM: rain / n,
				Condition:  group[len(group)-1].Condition,
			})
		}

		l := r.locks.Lock("weather:" + loc)
		err := r.store.ReplaceWeatherPoints(ctx, loc, rng, points)
		l.Unlock()
		if err != nil {
			return nil, fmt.Errorf("replace weather %s: %w", loc, err)
		}
		all = append(all, points...)
	}
	return all, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"MandiPulse/internal/domain/models"
	domrepo "MandiPulse/internal/domain/repository"
	pkgch "MandiPulse/pkg/clickhouse"
	applogger "MandiPulse/pkg/logger"
)

// SchemaStatements are the idempotent DDL for the pipeline tables, fed
// to the ClickHouse client on startup.
var SchemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS price_points (
        commodity    String,
        market       String,
        date         Date,
        min          Float64,
        max          Float64,
        avg          Float64,
        source_ids   Array(String),
        interpolated UInt8,
        inserted_at  DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(inserted_at)
    ORDER BY (commodity, market, date)`,
	`CREATE TABLE IF NOT EXISTS weather_points (
        location_id String,
        date        Date,
        temp_c      Float64,
        rainfall_mm Float64,
        condition   String,
        inserted_at DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(inserted_at)
    ORDER BY (location_id, date)`,
	`CREATE TABLE IF NOT EXISTS sentiment_scores (
        commodity   String,
        date        Date,
        score       Float64,
        label       String,
        article_ids Array(String),
        inserted_at DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(inserted_at)
    ORDER BY (commodity, date)`,
	`CREATE TABLE IF NOT EXISTS forecasts (
        commodity    String,
        market       String,
        model        String,
        issued_at    DateTime,
        as_of        Date,
        horizon_days Int32,
        target_date  Date,
        avg          Float64,
        min          Float64,
        max          Float64,
        stale_input  UInt8
    ) ENGINE = MergeTree()
    ORDER BY (commodity, market, model, target_date, issued_at)`,
	`CREATE TABLE IF NOT EXISTS observations (
        commodity   String,
        market      String,
        date        Date,
        actual_avg  Float64,
        inserted_at DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(inserted_at)
    ORDER BY (commodity, market, date)`,
}

// CHCanonicalStore implements CanonicalStore backed by ClickHouse.
// Replace-range is an ALTER DELETE of the window followed by a batch
// insert; the ReplacingMergeTree key absorbs eventual duplicates.
type CHCanonicalStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHCanonicalStore(ch *pkgch.Client) *CHCanonicalStore {
	return &CHCanonicalStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHCanonicalStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHCanonicalStore) ReplacePricePoints(ctx context.Context, key models.SeriesKey, rng models.DateRange, points []models.PricePoint) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		`ALTER TABLE price_points DELETE WHERE commodity = ? AND market = ? AND date >= ? AND date <= ?`,
		key.Commodity, key.Market, rng.From, rng.To)
	if err != nil {
		return fmt.Errorf("delete range: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO price_points (commodity, market, date, min, max, avg, source_ids, interpolated)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	for _, p := range points {
		interpolated := uint8(0)
		if p.Interpolated {
			interpolated = 1
		}
		if _, err := stmt.ExecContext(ctx, p.Key.Commodity, p.Key.Market, p.Date, p.Min, p.Max, p.Average, p.SourceIDs, interpolated); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert point: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse replace_price_points ok",
			applogger.String("series", key.String()),
			applogger.Int("rows", len(points)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHCanonicalStore) GetPricePoints(ctx context.Context, key models.SeriesKey, rng models.DateRange) ([]models.PricePoint, error) {
	const q = `
        SELECT date, min, max, avg, source_ids, interpolated
        FROM price_points FINAL
        WHERE commodity = ? AND market = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `
	rows, err := s.db.QueryContext(ctx, q, key.Commodity, key.Market, rng.From, rng.To)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_price_points query error",
				applogger.String("series", key.String()),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get price points: %w", err)
	}
	defer rows.Close()

	out := make([]models.PricePoint, 0, 256)
	for rows.Next() {
		p := models.PricePoint{Key: key, Unit: models.UnitQuintal}
		var interpolated uint8
		if err := rows.Scan(&p.Date, &p.Min, &p.Max, &p.Average, &p.SourceIDs, &interpolated); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		p.Date = models.Day(p.Date)
		p.Interpolated = interpolated == 1
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *CHCanonicalStore) GetLatestPricePoints(ctx context.Context, key models.SeriesKey, n int) ([]models.PricePoint, error) {
	const q = `
        SELECT date, min, max, avg, source_ids, interpolated
        FROM price_points FINAL
        WHERE commodity = ? AND market = ?
        ORDER BY date DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, key.Commodity, key.Market, n)
	if err != nil {
		return nil, fmt.Errorf("get latest points: %w", err)
	}
	defer rows.Close()

	out := make([]models.PricePoint, 0, n)
	for rows.Next() {
		p := models.PricePoint{Key: key, Unit: models.UnitQuintal}
		var interpolated uint8
		if err := rows.Scan(&p.Date, &p.Min, &p.Max, &p.Average, &p.SourceIDs, &interpolated); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		p.Date = models.Day(p.Date)
		p.Interpolated = interpolated == 1
		out = append(out, p)
	}
	// Newest-first from the query; callers expect ascending.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func (s *CHCanonicalStore) LastUpdated(ctx context.Context, key models.SeriesKey) (time.Time, error) {
	const q = `SELECT max(date) FROM price_points WHERE commodity = ? AND market = ?`
	var last time.Time
	if err := s.db.QueryRowContext(ctx, q, key.Commodity, key.Market).Scan(&last); err != nil {
		return time.Time{}, fmt.Errorf("last updated: %w", err)
	}
	return last, nil
}

func (s *CHCanonicalStore) ReplaceWeatherPoints(ctx context.Context, locationID string, rng models.DateRange, points []models.WeatherPoint) error {
	_, err := s.db.ExecContext(ctx,
		`ALTER TABLE weather_points DELETE WHERE location_id = ? AND date >= ? AND date <= ?`,
		locationID, rng.From, rng.To)
	if err != nil {
		return fmt.Errorf("delete weather range: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO weather_points (location_id, date, temp_c, rainfall_mm, condition)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	for _, w := range points {
		if _, err := stmt.ExecContext(ctx, w.LocationID, w.Date, w.TempC, w.RainfallMM, w.Condition); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert weather: %w", err)
		}
	}
	return tx.Commit()
}

func (s *CHCanonicalStore) GetWeatherPoints(ctx context.Context, locationID string, rng models.DateRange) ([]models.WeatherPoint, error) {
	const q = `
        SELECT date, temp_c, rainfall_mm, condition
        FROM weather_points FINAL
        WHERE location_id = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `
	rows, err := s.db.QueryContext(ctx, q, locationID, rng.From, rng.To)
	if err != nil {
		return nil, fmt.Errorf("get weather points: %w", err)
	}
	defer rows.Close()

	var out []models.WeatherPoint
	for rows.Next() {
		w := models.WeatherPoint{LocationID: locationID}
		if err := rows.Scan(&w.Date, &w.TempC, &w.RainfallMM, &w.Condition); err != nil {
			return nil, fmt.Errorf("scan weather: %w", err)
		}
		w.Date = models.Day(w.Date)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *CHCanonicalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHCanonicalStore) Close() error {
	return nil // Managed by pkg
}

// CHSentimentStore implements SentimentStore backed by ClickHouse.
type CHSentimentStore struct {
	db *sql.DB
}

func NewCHSentimentStore(ch *pkgch.Client) *CHSentimentStore {
	return &CHSentimentStore{db: ch.DB()}
}

func (s *CHSentimentStore) Put(ctx context.Context, sc models.SentimentScore) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sentiment_scores (commodity, date, score, label, article_ids) VALUES (?, ?, ?, ?, ?)`,
		sc.Commodity, models.Day(sc.Date), sc.Score, string(models.LabelForScore(sc.Score)), sc.SourceArticleIDs)
	if err != nil {
		return fmt.Errorf("insert sentiment: %w", err)
	}
	return nil
}

func (s *CHSentimentStore) Recent(ctx context.Context, commodity string, asOf time.Time, days int) ([]models.SentimentScore, error) {
	from := models.Day(asOf).AddDate(0, 0, -days)
	const q = `
        SELECT date, score, label, article_ids
        FROM sentiment_scores FINAL
        WHERE commodity = ? AND date > ? AND date <= ?
        ORDER BY date ASC
    `
	rows, err := s.db.QueryContext(ctx, q, commodity, from, models.Day(asOf))
	if err != nil {
		return nil, fmt.Errorf("get sentiment: %w", err)
	}
	defer rows.Close()

	var out []models.SentimentScore
	for rows.Next() {
		sc := models.SentimentScore{Commodity: commodity}
		var label string
		if err := rows.Scan(&sc.Date, &sc.Score, &label, &sc.SourceArticleIDs); err != nil {
			return nil, fmt.Errorf("scan sentiment: %w", err)
		}
		sc.Date = models.Day(sc.Date)
		sc.Label = models.SentimentLabel(label)
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *CHSentimentStore) Distribution(ctx context.Context, commodity string, asOf time.Time, days int) (models.SentimentDistribution, error) {
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

// CHForecastStore implements ForecastStore backed by ClickHouse.
// Drivers are an API-level concern and are not persisted; scoring uses
// the predicted average only.
type CHForecastStore struct {
	db *sql.DB
}

func NewCHForecastStore(ch *pkgch.Client) *CHForecastStore {
	return &CHForecastStore{db: ch.DB()}
}

func (s *CHForecastStore) Save(ctx context.Context, f *models.Forecast) error {
	stale := uint8(0)
	if f.StaleInput {
		stale = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO forecasts (commodity, market, model, issued_at, as_of, horizon_days, target_date, avg, min, max, stale_input)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Key.Commodity, f.Key.Market, string(f.Model), f.IssuedAt, f.AsOf, int32(f.HorizonDays), f.TargetDate,
		f.PredictedAverage, f.PredictedMin, f.PredictedMax, stale)
	if err != nil {
		return fmt.Errorf("insert forecast: %w", err)
	}
	return nil
}

func (s *CHForecastStore) Matured(ctx context.Context, key models.SeriesKey, rng models.DateRange) ([]models.Forecast, error) {
	const q = `
        SELECT model, issued_at, as_of, horizon_days, target_date, avg, min, max, stale_input
        FROM forecasts
        WHERE commodity = ? AND market = ? AND target_date >= ? AND target_date <= ?
        ORDER BY target_date ASC, issued_at ASC
    `
	rows, err := s.db.QueryContext(ctx, q, key.Commodity, key.Market, rng.From, rng.To)
	if err != nil {
		return nil, fmt.Errorf("get matured forecasts: %w", err)
	}
	defer rows.Close()

	var out []models.Forecast
	for rows.Next() {
		f := models.Forecast{Key: key}
		var model string
		var horizon int32
		var stale uint8
		if err := rows.Scan(&model, &f.IssuedAt, &f.AsOf, &horizon, &f.TargetDate, &f.PredictedAverage, &f.PredictedMin, &f.PredictedMax, &stale); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		f.Model = models.ModelKind(model)
		f.HorizonDays = int(horizon)
		f.AsOf = models.Day(f.AsOf)
		f.TargetDate = models.Day(f.TargetDate)
		f.StaleInput = stale == 1
		out = append(out, f)
	}
	return out, rows.Err()
}

// CHObservationStore implements ObservationStore backed by ClickHouse.
type CHObservationStore struct {
	db *sql.DB
}

func NewCHObservationStore(ch *pkgch.Client) *CHObservationStore {
	return &CHObservationStore{db: ch.DB()}
}

func (s *CHObservationStore) Put(ctx context.Context, o models.Observation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO observations (commodity, market, date, actual_avg) VALUES (?, ?, ?, ?)`,
		o.Key.Commodity, o.Key.Market, models.Day(o.Date), o.ActualAverage)
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

func (s *CHObservationStore) Get(ctx context.Context, key models.SeriesKey, date time.Time) (models.Observation, bool, error) {
	const q = `
        SELECT actual_avg
        FROM observations FINAL
        WHERE commodity = ? AND market = ? AND date = ?
        LIMIT 1
    `
	o := models.Observation{Key: key, Date: models.Day(date)}
	err := s.db.QueryRowContext(ctx, q, key.Commodity, key.Market, models.Day(date)).Scan(&o.ActualAverage)
	if err == sql.ErrNoRows {
		return models.Observation{}, false, nil
	}
	if err != nil {
		return models.Observation{}, false, fmt.Errorf("get observation: %w", err)
	}
	return o, true, nil
}

var (
	_ domrepo.CanonicalStore   = (*CHCanonicalStore)(nil)
	_ domrepo.SentimentStore   = (*CHSentimentStore)(nil)
	_ domrepo.ForecastStore    = (*CHForecastStore)(nil)
	_ domrepo.ObservationStore = (*CHObservationStore)(nil)
)

package di

import (
	"context"
	"fmt"
	"time"

	"MandiPulse/internal/aggregate"
	"MandiPulse/internal/alert"
	"MandiPulse/internal/domain/repository"
	domsvc "MandiPulse/internal/domain/service"
	"MandiPulse/internal/forecast"
	"MandiPulse/internal/handler/api"
	mid "MandiPulse/internal/middleware"
	"MandiPulse/internal/perf"
	"MandiPulse/internal/reconcile"
	internalrepo "MandiPulse/internal/repository"
	"MandiPulse/internal/service/feedstream"
	"MandiPulse/internal/service/ratelimit"
	"MandiPulse/internal/service/sources"
	"MandiPulse/internal/usecase"
	"MandiPulse/pkg/cache"
	pkgch "MandiPulse/pkg/clickhouse"
	"MandiPulse/pkg/config"
	xhttp "MandiPulse/pkg/http"
	pkgkafka "MandiPulse/pkg/kafka"
	applogger "MandiPulse/pkg/logger"
	"MandiPulse/pkg/metrics"
	"MandiPulse/pkg/queue"
	"MandiPulse/pkg/server"
)

// Stores bundles the pipeline's storage interfaces so one provider can
// pick the backend for all of them at once.
type Stores struct {
	Canonical    repository.CanonicalStore
	Sentiments   repository.SentimentStore
	Forecasts    repository.ForecastStore
	Observations repository.ObservationStore
	Performance  repository.PerformanceStore
	Alerts       repository.AlertStore
}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and initializes
// the schema. Returns nil for the memory backend.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Backend.Type != "clickhouse" {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.SchemaStatements); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideStores picks the storage backend. Performance records and
// alerts stay in memory on both backends: they are small, mutable
// working sets, not append-mostly history.
func ProvideStores(cfg *config.Config, chClient *pkgch.Client, l *applogger.Logger) *Stores {
	s := &Stores{
		Performance: internalrepo.NewMemoryPerformanceStore(),
		Alerts:      internalrepo.NewMemoryAlertStore(),
	}

	if chClient != nil {
		canonical := internalrepo.NewCHCanonicalStore(chClient)
		canonical.SetLogger(l)
		s.Canonical = canonical
		s.Sentiments = internalrepo.NewCHSentimentStore(chClient)
		s.Forecasts = internalrepo.NewCHForecastStore(chClient)
		s.Observations = internalrepo.NewCHObservationStore(chClient)
		return s
	}

	s.Canonical = internalrepo.NewMemoryCanonicalStore()
	s.Sentiments = internalrepo.NewMemorySentimentStore()
	s.Forecasts = internalrepo.NewMemoryForecastStore()
	s.Observations = internalrepo.NewMemoryObservationStore()
	return s
}

// ProvideKafkaProducer creates a Kafka producer, nil when kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideRedisCache connects the shared redis client, nil when
// disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, nil
	}

	opts := []cache.RedisOption{
		cache.WithRedisHost(cfg.Cache.Redis.Host),
		cache.WithRedisPort(cfg.Cache.Redis.Port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
	}
	if cfg.Cache.Redis.Prefix != "" {
		opts = append(opts, cache.WithRedisPrefix(cfg.Cache.Redis.Prefix))
	}
	rc, err := cache.NewRedisCache(opts...)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCacheService layers an in-process cache over redis when redis
// is available, else falls back to memory only.
func ProvideCacheService(rc *cache.RedisCache) cache.Service {
	if rc != nil {
		return cache.NewLayeredCache(rc)
	}
	return cache.NewMemoryCache()
}

// ProvideQueue creates the redis-backed redelivery queue for alert
// events. Nil when the queue or redis is disabled.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	return queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client())
}

// ProvidePublisher creates the event bus publisher. Alert events gain a
// queue-backed redelivery path when the queue is configured. Nil when
// kafka is off; every consumer treats a nil publisher as "no bus".
func ProvidePublisher(producer *pkgkafka.Producer, q *queue.RedisQueue, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	pub := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.PointsTopic, cfg.Kafka.AlertsTopic)
	if q != nil {
		return internalrepo.NewQueuedPublisher(pub, q)
	}
	return pub
}

// ProvideSourceAdapters builds the external source fleet.
func ProvideSourceAdapters(cfg *config.Config) []domsvc.SourceAdapter {
	limiter := ratelimit.New()
	timeout := cfg.Sources.Timeout
	rate := cfg.Sources.RatePerSecond

	locations := make([]string, 0, len(cfg.Markets.MandiLocations))
	seen := make(map[string]bool)
	for _, loc := range cfg.Markets.MandiLocations {
		if !seen[loc] {
			seen[loc] = true
			locations = append(locations, loc)
		}
	}

	adapters := make([]domsvc.SourceAdapter, 0, 3)
	if cfg.Sources.MarketPrice.BaseURL != "" {
		adapters = append(adapters, sources.NewMarketPriceAdapter(
			cfg.Sources.MarketPrice.BaseURL, cfg.Sources.MarketPrice.APIKey, timeout, limiter, rate))
	}
	if cfg.Sources.Weather.BaseURL != "" && len(locations) > 0 {
		adapters = append(adapters, sources.NewWeatherAdapter(
			cfg.Sources.Weather.BaseURL, cfg.Sources.Weather.APIKey, locations, timeout, limiter, rate))
	}
	if cfg.Sources.MacroStat.BaseURL != "" {
		adapters = append(adapters, sources.NewMacroStatAdapter(
			cfg.Sources.MacroStat.BaseURL, cfg.Sources.MacroStat.APIKey, timeout, limiter, rate))
	}
	return adapters
}

// ProvideReconciler creates the merge engine.
func ProvideReconciler(stores *Stores, pub repository.Publisher, m repository.Metrics, l *applogger.Logger, cfg *config.Config) *reconcile.Reconciler {
	opts := []reconcile.Option{reconcile.WithLogger(l)}
	if pub != nil {
		opts = append(opts, reconcile.WithPublisher(pub))
	}
	return reconcile.New(stores.Canonical, m, reconcile.Policy{
		MaxGapDays:           cfg.Reconcile.MaxGapDays,
		ConfidenceHalfLife:   cfg.Reconcile.ConfidenceHalfLife,
		ConflictThresholdPct: cfg.Reconcile.ConflictThresholdPct,
		MacroWeight:          cfg.Reconcile.MacroWeight,
	}, opts...)
}

// ProvideForecastEngine creates the forecast engine, swapping in the
// external adjustment scorer when one is configured.
func ProvideForecastEngine(stores *Stores, cfg *config.Config, l *applogger.Logger) *forecast.Engine {
	opts := []forecast.Option{forecast.WithLogger(l)}
	if cfg.Forecast.AdjustmentURL != "" {
		opts = append(opts, forecast.WithAdjustmentModel(
			forecast.NewHTTPAdjustment(cfg.Forecast.AdjustmentURL, cfg.Forecast.AdjustmentTimeout)))
	}
	return forecast.New(stores.Canonical, stores.Sentiments, stores.Forecasts, forecast.Config{
		MinHistory:      cfg.Forecast.MinHistory,
		SentimentDays:   cfg.Forecast.SentimentDays,
		WeatherDays:     cfg.Forecast.WeatherDays,
		FreshnessWindow: cfg.Reconcile.FreshnessWindow,
		Locations:       cfg.Markets.MandiLocations,
	}, opts...)
}

// ProvidePerfTracker creates the forecast performance tracker.
func ProvidePerfTracker(stores *Stores, l *applogger.Logger) *perf.Tracker {
	return perf.New(stores.Forecasts, stores.Observations, stores.Performance, perf.WithLogger(l))
}

// ProvideAlertEngine creates the threshold alert engine.
func ProvideAlertEngine(stores *Stores, pub repository.Publisher, m repository.Metrics, l *applogger.Logger) *alert.Engine {
	opts := []alert.Option{alert.WithLogger(l)}
	if pub != nil {
		opts = append(opts, alert.WithPublisher(pub))
	}
	return alert.New(stores.Alerts, m, opts...)
}

// ProvideAggregateService creates the regional aggregation service.
func ProvideAggregateService(stores *Stores, cfg *config.Config, c cache.Service, l *applogger.Logger) *aggregate.Service {
	return aggregate.New(stores.Canonical, aggregate.Config{
		Markets:     cfg.Markets.Mandis,
		States:      cfg.Markets.MandiStates,
		SnapshotTTL: cfg.Cache.SnapshotTTL,
	}, aggregate.WithCache(c), aggregate.WithLogger(l))
}

// ProvideSyncUseCase creates the source sync cycle.
func ProvideSyncUseCase(
	cfg *config.Config,
	adapters []domsvc.SourceAdapter,
	reconciler *reconcile.Reconciler,
	stores *Stores,
	alerts *alert.Engine,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.SyncUseCase {
	return usecase.NewSyncUseCase(adapters, reconciler, stores.Observations, m,
		usecase.WithSyncLogger(l),
		usecase.WithAlertEvaluator(alerts),
		usecase.WithSyncLookback(cfg.Sync.LookbackDays),
	)
}

// ProvideSeriesUseCase creates the canonical read-side use case.
func ProvideSeriesUseCase(stores *Stores, cfg *config.Config) *usecase.SeriesUseCase {
	return usecase.NewSeriesUseCase(stores.Canonical, cfg.Reconcile.FreshnessWindow)
}

// ProvideFeedStream creates the live tick stream, nil when the feed is
// disabled.
func ProvideFeedStream(cfg *config.Config) repository.PriceStream {
	if !cfg.Feed.Enabled {
		return nil
	}
	series := make([]string, 0, len(cfg.Markets.Commodities)*len(cfg.Markets.Mandis))
	for _, c := range cfg.Markets.Commodities {
		for _, m := range cfg.Markets.Mandis {
			series = append(series, c+":"+m)
		}
	}
	return feedstream.New(cfg.Feed.APIKey, cfg.Feed.WebSocketURL, series,
		cfg.Feed.ReconnectDelay, cfg.Feed.PingInterval)
}

// ProvideFeedCollector creates the tick collector with its throttling
// pipeline, nil when there is no stream.
func ProvideFeedCollector(stream repository.PriceStream, alerts *alert.Engine, m repository.Metrics) *usecase.FeedCollector {
	if stream == nil {
		return nil
	}
	proc := usecase.NewTickProcessor(alerts, m)
	pipe := mid.NewTickPipeline(proc, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewFeedCollector(stream, proc, m, pipe)
}

// ProvideKafkaConsumer creates the sentiment consumer, nil when kafka
// or the sentiment topic is off.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.Sentiment.Topic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Sentiment.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Sentiment.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Sentiment.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Sentiment.RetryMax, cfg.Kafka.Sentiment.BackoffMin, cfg.Kafka.Sentiment.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Sentiment.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Sentiment.MinBytes, cfg.Kafka.Sentiment.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideSentimentHandler registers the handler for the sentiment topic.
func ProvideSentimentHandler(cfg *config.Config, stores *Stores, m repository.Metrics) *usecase.KafkaSentimentHandler {
	return usecase.NewKafkaSentimentHandler(cfg.Kafka.Sentiment.Topic, stores.Sentiments, m)
}

// ProvideHandler creates the HTTP API handler.
func ProvideHandler(
	cfg *config.Config,
	l *applogger.Logger,
	syncUC *usecase.SyncUseCase,
	seriesUC *usecase.SeriesUseCase,
	engine *forecast.Engine,
	tracker *perf.Tracker,
	alerts *alert.Engine,
	aggregates *aggregate.Service,
	stores *Stores,
) *api.PipelineEchoHandler {
	return api.NewPipelineEchoHandler(l, syncUC, seriesUC, engine, tracker, alerts, aggregates,
		stores.Sentiments, stores.Canonical, cfg.Markets.Mandis)
}

// ProvideApp assembles the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.PipelineEchoHandler,
	syncUC *usecase.SyncUseCase,
	collector *usecase.FeedCollector,
	consumer *pkgkafka.Consumer,
	sh *usecase.KafkaSentimentHandler,
	q *queue.RedisQueue,
	pub repository.Publisher,
	chClient *pkgch.Client,
	rc *cache.RedisCache,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.LoggingHook{})
	}
	var job queue.Job
	if q != nil && pub != nil {
		job = internalrepo.NewAlertRedeliveryJob(pub)
	}
	var h xhttp.Handler = handler
	return server.New(server.Params{
		Cfg:              cfg,
		Logger:           l,
		Handler:          h,
		Sync:             syncUC,
		Collector:        collector,
		Consumer:         consumer,
		SentimentHandler: sh,
		Queue:            q,
		RedeliveryJob:    job,
		Publisher:        pub,
		CHClient:         chClient,
		RedisCache:       rc,
	})
}

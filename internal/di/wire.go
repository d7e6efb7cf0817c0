//go:build wireinject
// +build wireinject

package di

import (
	"MandiPulse/pkg/config"
	"MandiPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisCache,
		ProvideCacheService,
		ProvideQueue,

		// Storage and event bus
		ProvideStores,
		ProvidePublisher,

		// Pipeline engines
		ProvideSourceAdapters,
		ProvideReconciler,
		ProvideForecastEngine,
		ProvidePerfTracker,
		ProvideAlertEngine,
		ProvideAggregateService,

		// Use cases
		ProvideSyncUseCase,
		ProvideSeriesUseCase,
		ProvideFeedStream,
		ProvideFeedCollector,
		ProvideKafkaConsumer,
		ProvideSentimentHandler,

		// HTTP surface and application server
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}

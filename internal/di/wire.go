//go:build wireinject
// +build wireinject

package di

import (
	"LevelScan/pkg/config"
	"LevelScan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvidePostgresClient,
		ProvideRedisCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Stores
		ProvideCandleStore,
		ProvideLevelStore,
		ProvideTrendStore,
		ProvideIndicatorStore,
		ProvideAlertStore,
		ProvideSignalStore,
		ProvideMarketCapStore,
		ProvideSignalPublisher,

		// External services
		ProvideBinanceClient,
		ProvideMarketCapClient,

		// Queue
		ProvideQueuePublisher,
		ProvideQueueWorker,
		ProvideCandleRefreshJob,

		// Use cases
		ProvideSweep,
		ProvideCandleCollector,
		ProvideMarketCapCollector,
		ProvideStreamCollector,
		ProvideKafkaCandlesHandler,

		// HTTP
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

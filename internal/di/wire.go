//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"PolySwarm/pkg/config"
	"PolySwarm/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Stores
		ProvideSignalStore,
		ProvideTriggerStore,
		ProvideMarketStore,
		ProvidePriceStore,
		ProvideTraderStatsStore,

		// Swarm services
		ProvideRetryPolicy,
		ProvideModelQuerier,
		ProvideSynthesizer,
		ProvidePromptBuilder,

		// Use cases
		ProvideOrchestrator,
		ProvideAggregator,
		ProvideAnalyzer,
		ProvideDeduplicator,
		ProvideTriggerDetector,
		ProvideWhaleHandler,
		ProvidePriceHandler,
		ProvideMarketStream,
		ProvideFeedCollector,
		ProvideSweepQueue,
		ProvideSweepScheduler,

		// Surface
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}

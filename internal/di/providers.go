package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"PolySwarm/internal/domain/models"
	"PolySwarm/internal/domain/repository"
	domsvc "PolySwarm/internal/domain/service"
	"PolySwarm/internal/handler/api"
	mid "PolySwarm/internal/middleware"
	internalrepo "PolySwarm/internal/repository"
	"PolySwarm/internal/service/marketdata"
	"PolySwarm/internal/service/ratelimit"
	"PolySwarm/internal/services/swarm"
	"PolySwarm/internal/usecase"
	pkgch "PolySwarm/pkg/clickhouse"
	"PolySwarm/pkg/config"
	xhttp "PolySwarm/pkg/http"
	pkgkafka "PolySwarm/pkg/kafka"
	applogger "PolySwarm/pkg/logger"
	"PolySwarm/pkg/metrics"
	"PolySwarm/pkg/queue"
	"PolySwarm/pkg/retry"
	"PolySwarm/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: "stdout",
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisClient creates the shared Redis client.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the
// snapshot schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
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
	if err := client.InitSchema(ctx, internalrepo.PriceSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
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

// ProvideKafkaConsumer creates the topic consumer.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideSignalStore creates the Redis signal store.
func ProvideSignalStore(client *redis.Client) repository.SignalStore {
	return internalrepo.NewRedisSignalStore(client)
}

// ProvideTriggerStore creates the Redis trigger store.
func ProvideTriggerStore(client *redis.Client) repository.TriggerStore {
	return internalrepo.NewRedisTriggerStore(client)
}

// ProvideMarketStore creates the Redis market metadata store.
func ProvideMarketStore(client *redis.Client) repository.MarketStore {
	return internalrepo.NewRedisMarketStore(client)
}

// ProvidePriceStore creates the ClickHouse price store.
func ProvidePriceStore(chClient *pkgch.Client) repository.PriceStore {
	return internalrepo.NewClickHousePriceStore(chClient.DB())
}

// ProvideTraderStatsStore fronts the Redis profile store with a short
// in-process cache.
func ProvideTraderStatsStore(client *redis.Client) repository.TraderStatsStore {
	return internalrepo.NewCachedTraderStats(internalrepo.NewRedisTraderStatsStore(client), 5*time.Minute)
}

// ProvideRetryPolicy builds the shared backoff schedule.
func ProvideRetryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxRetries: cfg.Swarm.Retry.MaxRetries,
		BaseDelay:  cfg.Swarm.Retry.BaseDelay,
		Multiplier: cfg.Swarm.Retry.Multiplier,
		MaxDelay:   cfg.Swarm.Retry.MaxDelay,
	}
}

// ProvideModelQuerier creates the swarm API client.
func ProvideModelQuerier(cfg *config.Config, logger *applogger.Logger) domsvc.ModelQuerier {
	return swarm.NewClient(swarmConfig(cfg), ratelimit.New(), logger)
}

// ProvideSynthesizer creates the secondary aggregation model client, or
// nil when synthesis is disabled; the aggregator then always uses its
// deterministic fallback.
func ProvideSynthesizer(cfg *config.Config, policy retry.Policy, logger *applogger.Logger) domsvc.Synthesizer {
	if !cfg.Swarm.Synthesis.Enabled || cfg.Swarm.Synthesis.Model == "" {
		return nil
	}
	return swarm.NewSynthesizer(swarmConfig(cfg), cfg.Swarm.Synthesis.Model, policy, logger)
}

func swarmConfig(cfg *config.Config) swarm.Config {
	return swarm.Config{
		BaseURL:      cfg.Swarm.BaseURL,
		APIKey:       cfg.Swarm.APIKey,
		CallTimeout:  cfg.Swarm.CallTimeout,
		RateCapacity: cfg.Swarm.Rate.Capacity,
		RateRefill:   cfg.Swarm.Rate.RefillPerSec,
	}
}

// ProvideOrchestrator creates the swarm fan-out.
func ProvideOrchestrator(querier domsvc.ModelQuerier, policy retry.Policy, cfg *config.Config, m repository.Metrics, logger *applogger.Logger) *usecase.SwarmOrchestrator {
	return usecase.NewSwarmOrchestrator(querier, policy, cfg.Swarm.MaxInFlight, m, logger)
}

// ProvideAggregator creates the consensus aggregator.
func ProvideAggregator(synth domsvc.Synthesizer, logger *applogger.Logger) *usecase.ConsensusAggregator {
	return usecase.NewConsensusAggregator(synth, logger)
}

// ProvidePromptBuilder renders analysis prompts.
func ProvidePromptBuilder() usecase.PromptBuilder {
	return func(market models.Market, history []models.PriceSnapshot, trade *models.WhaleTrade) (string, string) {
		return swarm.SystemPrompt, swarm.BuildUserPrompt(market, history, trade)
	}
}

// ProvideAnalyzer creates the full-pass market analyzer.
func ProvideAnalyzer(orch *usecase.SwarmOrchestrator, agg *usecase.ConsensusAggregator, prices repository.PriceStore, markets repository.MarketStore, build usecase.PromptBuilder, cfg *config.Config, logger *applogger.Logger) *usecase.MarketAnalyzer {
	return usecase.NewMarketAnalyzer(orch, agg, prices, markets, build, cfg.Swarm.Models, cfg.Triggers.PriceWindow, logger)
}

// ProvideDeduplicator creates the signal deduplicator.
func ProvideDeduplicator(signals repository.SignalStore, prices repository.PriceStore, cfg *config.Config, m repository.Metrics, logger *applogger.Logger) *usecase.SignalDeduplicator {
	return usecase.NewSignalDeduplicator(signals, prices, usecase.DedupConfig{
		Window:          cfg.Signals.DedupWindow,
		MinConsensusPct: cfg.Signals.MinConsensusPct,
		ConfidenceHigh:  cfg.Signals.Confidence.HighMin,
		ConfidenceMed:   cfg.Signals.Confidence.MediumMin,
	}, m, logger)
}

// ProvideTriggerDetector creates the three-heuristic detector.
func ProvideTriggerDetector(triggers repository.TriggerStore, prices repository.PriceStore, signals repository.SignalStore, stats repository.TraderStatsStore, cfg *config.Config, m repository.Metrics, logger *applogger.Logger) *usecase.TriggerDetector {
	return usecase.NewTriggerDetector(triggers, prices, signals, stats, usecase.TriggerThresholds{
		PriceMoveThreshold: cfg.Triggers.PriceMoveThreshold,
		PriceWindow:        cfg.Triggers.PriceWindow,
		MovementExpiry:     cfg.Triggers.MovementExpiry,
		ContrarianWindow:   cfg.Triggers.ContrarianWindow,
		ContrarianExpiry:   cfg.Triggers.ContrarianExpiry,
		ProximityExpiry:    cfg.Triggers.ProximityExpiry,
		ProximityDays:      cfg.Triggers.ProximityDays,
		SmartWinRate:       cfg.Triggers.SmartWinRate,
		StrongWinRate:      cfg.Triggers.StrongWinRate,
		SizeForMaxBonusUSD: cfg.Triggers.SizeForMaxBonusUSD,
	}, m, logger)
}

// ProvideWhaleHandler creates the trades-topic handler.
func ProvideWhaleHandler(cfg *config.Config, markets repository.MarketStore, detector *usecase.TriggerDetector, dedup *usecase.SignalDeduplicator, analyzer *usecase.MarketAnalyzer, m repository.Metrics, logger *applogger.Logger) *usecase.WhaleTradeHandler {
	return usecase.NewWhaleTradeHandler(cfg.Kafka.TradesTopic, cfg.Signals.WhaleMinSizeUSD, markets, detector, dedup, analyzer, m, logger)
}

// ProvidePriceHandler creates the prices-topic handler.
func ProvidePriceHandler(cfg *config.Config, prices repository.PriceStore, markets repository.MarketStore, detector *usecase.TriggerDetector, m repository.Metrics, logger *applogger.Logger) *usecase.PriceHandler {
	return usecase.NewPriceHandler(cfg.Kafka.PricesTopic, prices, markets, detector, m, logger)
}

// ProvideMarketStream creates the exchange WebSocket feed.
func ProvideMarketStream(cfg *config.Config, logger *applogger.Logger) repository.MarketStream {
	return marketdata.New(
		cfg.MarketData.APIKey,
		cfg.MarketData.WebSocketURL,
		cfg.MarketData.Markets,
		cfg.MarketData.ReconnectDelay,
		cfg.MarketData.PingInterval,
		logger,
	)
}

// ProvideFeedCollector builds the stream-to-Kafka path with a validated,
// throttled pipeline per topic.
func ProvideFeedCollector(stream repository.MarketStream, producer *pkgkafka.Producer, cfg *config.Config, m repository.Metrics, logger *applogger.Logger) *usecase.FeedCollector {
	tradePipe := mid.NewFeedPipeline(
		usecase.NewTradePublisher(producer, cfg.Kafka.TradesTopic),
		func(e models.TradeEvent) string { return e.Trade.MarketID },
		m,
		mid.WithValidator[models.TradeEvent](usecase.ValidateTradeEvent),
		mid.WithMaxRPS[models.TradeEvent](50),
		mid.WithBufferSize[models.TradeEvent](2000),
	)
	pricePipe := mid.NewFeedPipeline(
		usecase.NewPricePublisher(producer, cfg.Kafka.PricesTopic),
		func(e models.PriceEvent) string { return e.Snapshot.MarketID },
		m,
		mid.WithValidator[models.PriceEvent](usecase.ValidatePriceEvent),
		mid.WithMaxRPS[models.PriceEvent](20),
		mid.WithBufferSize[models.PriceEvent](2000),
	)
	return usecase.NewFeedCollector(stream, tradePipe, pricePipe, m, logger)
}

// ProvideSweepQueue creates the Redis job queue running the trigger
// expiry sweep.
func ProvideSweepQueue(client *redis.Client, detector *usecase.TriggerDetector, logger *applogger.Logger) *queue.RedisQueue {
	return queue.NewRedisConsumer(logger, &queue.QueueConfig{
		Workers:    1,
		QueueSize:  64,
		RetryLimit: 2,
		RetryDelay: 5 * time.Second,
	}, client, []queue.Job{usecase.NewTriggerSweepJob(detector, logger)},
		queue.WithKeyPrefix("polyswarm"))
}

// ProvideSweepScheduler enqueues sweep requests on the configured interval.
func ProvideSweepScheduler(q *queue.RedisQueue, cfg *config.Config, logger *applogger.Logger) *usecase.SweepScheduler {
	return usecase.NewSweepScheduler(q, cfg.Triggers.SweepInterval, logger)
}

// ProvideHTTPHandler creates the Echo API handler.
func ProvideHTTPHandler(logger *applogger.Logger, signals repository.SignalStore, triggers repository.TriggerStore, analyzer *usecase.MarketAnalyzer, detector *usecase.TriggerDetector, collector *usecase.FeedCollector) xhttp.Handler {
	return api.NewSwarmEchoHandler(logger, signals, triggers, analyzer, detector, collector)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	collector *usecase.FeedCollector,
	consumer *pkgkafka.Consumer,
	whale *usecase.WhaleTradeHandler,
	price *usecase.PriceHandler,
	sweepQueue *queue.RedisQueue,
	scheduler *usecase.SweepScheduler,
	handler xhttp.Handler,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	redisClient *redis.Client,
) *server.App {
	consumer.WithConsumerHook(pkgkafka.NoopHook{})
	consumer.RegisterHandler(whale)
	consumer.RegisterHandler(price)
	return server.New(cfg, logger, collector, consumer, sweepQueue, scheduler, handler, producer, chClient, redisClient)
}

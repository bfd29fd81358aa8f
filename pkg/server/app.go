package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	pkgch "PolySwarm/pkg/clickhouse"
	"PolySwarm/pkg/config"
	xhttp "PolySwarm/pkg/http"
	pkgkafka "PolySwarm/pkg/kafka"
	applogger "PolySwarm/pkg/logger"
	"PolySwarm/pkg/queue"
)

// Collector is the feed ingestion lifecycle the app controls.
type Collector interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Scheduler is a background loop that runs until its context is cancelled.
type Scheduler interface {
	Run(ctx context.Context)
}

// App encapsulates the application lifecycle: feed collector, Kafka
// consumer, sweep queue and HTTP server start together and shut down in
// reverse order.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	collector   Collector
	consumer    *pkgkafka.Consumer
	sweepQueue  *queue.RedisQueue
	scheduler   Scheduler
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	producer    *pkgkafka.Producer
	chClient    *pkgch.Client
	redisClient *redis.Client
}

// New creates an App with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	collector Collector,
	consumer *pkgkafka.Consumer,
	sweepQueue *queue.RedisQueue,
	scheduler Scheduler,
	handler xhttp.Handler,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	redisClient *redis.Client,
) *App {
	return &App{
		cfg:         cfg,
		logger:      logger,
		collector:   collector,
		consumer:    consumer,
		sweepQueue:  sweepQueue,
		scheduler:   scheduler,
		httpHandler: handler,
		producer:    producer,
		chClient:    chClient,
		redisClient: redisClient,
	}
}

// Run starts every component and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			a.logger.Error("collector start error", applogger.Error(err))
			return err
		}
		a.logger.Info("feed collector started",
			applogger.Strings("markets", a.cfg.MarketData.Markets))
	}

	go func() {
		if err := a.consumer.Start(); err != nil {
			a.logger.Error("kafka consumer error", applogger.Error(err))
		}
	}()
	a.logger.Info("kafka consumer started",
		applogger.String("trades_topic", a.cfg.Kafka.TradesTopic),
		applogger.String("prices_topic", a.cfg.Kafka.PricesTopic))

	if a.sweepQueue != nil {
		if err := a.sweepQueue.Start(); err != nil {
			a.logger.Error("sweep queue start error", applogger.Error(err))
			return err
		}
		go a.scheduler.Run(ctx)
		a.logger.Info("trigger sweep scheduled",
			applogger.Duration("interval", a.cfg.Triggers.SweepInterval))
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops all services, surfaces-first.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.collector != nil {
		if err := a.collector.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("collector stop error", applogger.Error(err))
		}
	}

	if err := a.consumer.Stop(shutdownCtx); err != nil {
		a.logger.Warn("kafka consumer stop error", applogger.Error(err))
	}

	if a.sweepQueue != nil {
		if err := a.sweepQueue.Stop(shutdownCtx); err != nil {
			a.logger.Warn("sweep queue stop error", applogger.Error(err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("redis close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}

package usecase

import (
	"context"
	"fmt"

	"PolySwarm/internal/domain/models"
	drepo "PolySwarm/internal/domain/repository"
	mid "PolySwarm/internal/middleware"
	pkgkafka "PolySwarm/pkg/kafka"
	applogger "PolySwarm/pkg/logger"
)

// FeedCollector pumps the live market stream into Kafka through the feed
// pipelines. It owns the reconnect loop; processing happens downstream in
// the topic consumers.
type FeedCollector struct {
	stream    drepo.MarketStream
	tradePipe *mid.FeedPipeline[models.TradeEvent]
	pricePipe *mid.FeedPipeline[models.PriceEvent]
	metrics   drepo.Metrics
	logger    *applogger.Logger
}

func NewFeedCollector(stream drepo.MarketStream, tradePipe *mid.FeedPipeline[models.TradeEvent], pricePipe *mid.FeedPipeline[models.PriceEvent], metrics drepo.Metrics, logger *applogger.Logger) *FeedCollector {
	return &FeedCollector{
		stream:    stream,
		tradePipe: tradePipe,
		pricePipe: pricePipe,
		metrics:   metrics,
		logger:    logger,
	}
}

// IsConnected reports feed health for the health endpoint.
func (c *FeedCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes and launches the consume loop.
func (c *FeedCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.tradePipe.Start(ctx)
	c.pricePipe.Start(ctx)
	go c.consume(ctx)
	return nil
}

// consume pumps events until ctx is done, reconnecting and re-acquiring
// the channels whenever the feed dies.
func (c *FeedCollector) consume(ctx context.Context) {
	trades, prices, errs := c.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			if err != nil {
				c.metrics.RecordError("stream")
				c.logger.Warn("market stream died, reconnecting", applogger.Error(err))
				if rerr := c.stream.Reconnect(ctx); rerr != nil {
					c.logger.Error("reconnect failed", applogger.Error(rerr))
					continue
				}
				trades, prices, errs = c.stream.Read(ctx)
			}
		case event, ok := <-trades:
			if !ok {
				trades = nil
				continue
			}
			_ = c.tradePipe.Process(ctx, event)
		case event, ok := <-prices:
			if !ok {
				prices = nil
				continue
			}
			_ = c.pricePipe.Process(ctx, event)
			c.metrics.RecordLastPrice(event.Snapshot.MarketID, event.Snapshot.Price)
		}
	}
}

// Shutdown stops the pipelines and closes the stream.
func (c *FeedCollector) Shutdown(ctx context.Context) error {
	c.tradePipe.Stop()
	c.pricePipe.Stop()
	return c.stream.Close()
}

// NewTradePublisher adapts the Kafka producer into the trade pipeline's
// downstream stage. Events are keyed by market so per-market ordering is
// preserved across partitions.
func NewTradePublisher(producer *pkgkafka.Producer, topic string) mid.ProcFunc[models.TradeEvent] {
	return func(ctx context.Context, event models.TradeEvent) error {
		if err := producer.Publish(ctx, topic, []byte(event.Trade.MarketID), event); err != nil {
			return fmt.Errorf("publish trade event: %w", err)
		}
		return nil
	}
}

// NewPricePublisher adapts the Kafka producer into the price pipeline's
// downstream stage.
func NewPricePublisher(producer *pkgkafka.Producer, topic string) mid.ProcFunc[models.PriceEvent] {
	return func(ctx context.Context, event models.PriceEvent) error {
		if err := producer.Publish(ctx, topic, []byte(event.Snapshot.MarketID), event); err != nil {
			return fmt.Errorf("publish price event: %w", err)
		}
		return nil
	}
}

// ValidateTradeEvent rejects events that cannot be processed downstream.
func ValidateTradeEvent(event models.TradeEvent) error {
	t := event.Trade
	if t.MarketID == "" {
		return fmt.Errorf("trade missing market id")
	}
	if !t.Side.IsTrading() {
		return fmt.Errorf("trade side %q is not YES or NO", t.Side)
	}
	if t.Price < 0 || t.Price > 1 || t.SizeUSD < 0 {
		return fmt.Errorf("trade out of range: price %f size %f", t.Price, t.SizeUSD)
	}
	return nil
}

// ValidatePriceEvent rejects snapshots outside the probability range.
func ValidatePriceEvent(event models.PriceEvent) error {
	s := event.Snapshot
	if s.MarketID == "" {
		return fmt.Errorf("snapshot missing market id")
	}
	if s.Price < 0 || s.Price > 1 {
		return fmt.Errorf("price %f outside [0,1]", s.Price)
	}
	return nil
}

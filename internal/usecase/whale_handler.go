package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"PolySwarm/internal/domain/models"
	drepo "PolySwarm/internal/domain/repository"
	applogger "PolySwarm/pkg/logger"
)

// WhaleTradeHandler consumes the trades topic. Each qualifying trade runs
// contrarian detection and the signal dedup path; undersized trades are
// dropped after the market upsert.
type WhaleTradeHandler struct {
	topic      string
	minSizeUSD float64
	markets    drepo.MarketStore
	detector   *TriggerDetector
	dedup      *SignalDeduplicator
	analyzer   *MarketAnalyzer
	metrics    drepo.Metrics
	logger     *applogger.Logger
}

func NewWhaleTradeHandler(topic string, minSizeUSD float64, markets drepo.MarketStore, detector *TriggerDetector, dedup *SignalDeduplicator, analyzer *MarketAnalyzer, metrics drepo.Metrics, logger *applogger.Logger) *WhaleTradeHandler {
	return &WhaleTradeHandler{
		topic:      topic,
		minSizeUSD: minSizeUSD,
		markets:    markets,
		detector:   detector,
		dedup:      dedup,
		analyzer:   analyzer,
		metrics:    metrics,
		logger:     logger,
	}
}

func (h *WhaleTradeHandler) Topic() string { return h.topic }

// Handle processes one trade event. Errors bubble to the consumer's retry
// and DLQ machinery.
func (h *WhaleTradeHandler) Handle(ctx context.Context, payload []byte) error {
	var event models.TradeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode trade event: %w", err)
	}
	trade := event.Trade
	if trade.MarketID == "" {
		return fmt.Errorf("trade event missing market id")
	}

	if event.Market != nil {
		if err := h.markets.Upsert(ctx, *event.Market); err != nil {
			if h.logger != nil {
				h.logger.Warn("market upsert failed",
					applogger.String("market", trade.MarketID),
					applogger.Error(err))
			}
		}
	}

	if trade.SizeUSD < h.minSizeUSD {
		return nil
	}

	if _, err := h.detector.DetectContrarianWhale(ctx, trade); err != nil {
		if h.logger != nil {
			h.logger.Warn("contrarian detection failed",
				applogger.String("market", trade.MarketID),
				applogger.Error(err))
		}
		if h.metrics != nil {
			h.metrics.RecordError("contrarian_detect")
		}
	}

	outcome, err := h.dedup.HandleTrigger(ctx, trade.MarketID, trade, h.analyzer.Provider(trade))
	if err != nil {
		return fmt.Errorf("handle whale trade %s: %w", trade.ID, err)
	}
	if outcome.Skipped && h.logger != nil {
		h.logger.Debug("whale trade below consensus threshold",
			applogger.String("market", trade.MarketID),
			applogger.String("trade", trade.ID))
	}
	return nil
}

package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"PolySwarm/internal/domain/models"
	drepo "PolySwarm/internal/domain/repository"
	applogger "PolySwarm/pkg/logger"
)

// PriceHandler consumes the prices topic: it appends every snapshot to the
// time series and evaluates the price-driven trigger heuristics.
type PriceHandler struct {
	topic    string
	prices   drepo.PriceStore
	markets  drepo.MarketStore
	detector *TriggerDetector
	metrics  drepo.Metrics
	logger   *applogger.Logger
}

func NewPriceHandler(topic string, prices drepo.PriceStore, markets drepo.MarketStore, detector *TriggerDetector, metrics drepo.Metrics, logger *applogger.Logger) *PriceHandler {
	return &PriceHandler{
		topic:    topic,
		prices:   prices,
		markets:  markets,
		detector: detector,
		metrics:  metrics,
		logger:   logger,
	}
}

func (h *PriceHandler) Topic() string { return h.topic }

// Handle processes one price event. The append must succeed; trigger
// evaluation failures are logged but do not fail the message, since the
// snapshot is already durable.
func (h *PriceHandler) Handle(ctx context.Context, payload []byte) error {
	var event models.PriceEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode price event: %w", err)
	}
	snap := event.Snapshot
	if snap.MarketID == "" {
		return fmt.Errorf("price event missing market id")
	}

	if event.Market != nil {
		if err := h.markets.Upsert(ctx, *event.Market); err != nil {
			if h.logger != nil {
				h.logger.Warn("market upsert failed",
					applogger.String("market", snap.MarketID),
					applogger.Error(err))
			}
		}
	}

	if err := h.prices.Append(ctx, snap); err != nil {
		return fmt.Errorf("append price snapshot: %w", err)
	}
	if h.metrics != nil {
		h.metrics.RecordLastPrice(snap.MarketID, snap.Price)
	}

	if _, err := h.detector.DetectPriceMovement(ctx, snap.MarketID, snap.Price); err != nil {
		if h.logger != nil {
			h.logger.Warn("price movement detection failed",
				applogger.String("market", snap.MarketID),
				applogger.Error(err))
		}
		if h.metrics != nil {
			h.metrics.RecordError("price_movement_detect")
		}
	}

	market := models.Market{ID: snap.MarketID}
	if event.Market != nil {
		market = *event.Market
	} else if m, err := h.markets.Get(ctx, snap.MarketID); err == nil && m != nil {
		market = *m
	}
	if _, err := h.detector.DetectResolutionProximity(ctx, market, snap.Price); err != nil {
		if h.logger != nil {
			h.logger.Warn("resolution proximity detection failed",
				applogger.String("market", snap.MarketID),
				applogger.Error(err))
		}
		if h.metrics != nil {
			h.metrics.RecordError("proximity_detect")
		}
	}
	return nil
}

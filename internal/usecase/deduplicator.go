package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"PolySwarm/internal/domain/models"
	drepo "PolySwarm/internal/domain/repository"
	applogger "PolySwarm/pkg/logger"
)

// ConsensusProvider produces a fresh consensus for a market's current
// context. Only invoked when a new signal may be created; merged trades
// keep the original consensus.
type ConsensusProvider func(ctx context.Context, marketID string) (models.ConsensusResult, error)

// TriggerOutcome reports what HandleTrigger did with a qualifying trade.
type TriggerOutcome struct {
	SignalID string `json:"signal_id,omitempty"`
	Created  bool   `json:"created"`
	Skipped  bool   `json:"skipped"` // consensus below threshold; a filter, not an error
}

// SignalDeduplicator merges triggering trades for the same market into one
// signal per dedup window.
//
// The window lookup and the signal write are two store operations; two
// near-simultaneous triggers for the same market can therefore both create
// a signal inside one window. The store gives per-record atomicity only, so
// at-least-one-in-the-window is the guarantee, not exactly-one.
type SignalDeduplicator struct {
	signals drepo.SignalStore
	prices  drepo.PriceStore
	metrics drepo.Metrics
	logger  *applogger.Logger

	window          time.Duration
	minConsensusPct float64
	highMin         float64
	mediumMin       float64

	now func() time.Time
}

// DedupConfig carries the externally supplied signal thresholds.
type DedupConfig struct {
	Window          time.Duration
	MinConsensusPct float64
	ConfidenceHigh  float64
	ConfidenceMed   float64
}

func NewSignalDeduplicator(signals drepo.SignalStore, prices drepo.PriceStore, cfg DedupConfig, metrics drepo.Metrics, logger *applogger.Logger) *SignalDeduplicator {
	if cfg.Window <= 0 {
		cfg.Window = 60 * time.Second
	}
	if cfg.ConfidenceHigh <= 0 {
		cfg.ConfidenceHigh = 80
	}
	if cfg.ConfidenceMed <= 0 {
		cfg.ConfidenceMed = 60
	}
	return &SignalDeduplicator{
		signals:         signals,
		prices:          prices,
		metrics:         metrics,
		logger:          logger,
		window:          cfg.Window,
		minConsensusPct: cfg.MinConsensusPct,
		highMin:         cfg.ConfidenceHigh,
		mediumMin:       cfg.ConfidenceMed,
		now:             time.Now,
	}
}

// HandleTrigger merges the trade into a recent signal for the market or,
// when none exists, runs consensus and creates one. A consensus below the
// minimum percentage skips creation and reports Skipped.
func (d *SignalDeduplicator) HandleTrigger(ctx context.Context, marketID string, trade models.WhaleTrade, consensus ConsensusProvider) (TriggerOutcome, error) {
	now := d.now()

	existing, err := d.signals.LatestSince(ctx, marketID, now.Add(-d.window))
	if err != nil {
		return TriggerOutcome{}, fmt.Errorf("lookup recent signal: %w", err)
	}
	if existing != nil {
		if err := d.signals.AppendTrade(ctx, existing.ID, trade); err != nil {
			return TriggerOutcome{}, fmt.Errorf("append trade to signal %s: %w", existing.ID, err)
		}
		if d.metrics != nil {
			d.metrics.RecordSignal(marketID, false)
		}
		if d.logger != nil {
			d.logger.Debug("trade merged into existing signal",
				applogger.String("market", marketID),
				applogger.String("signal", existing.ID))
		}
		return TriggerOutcome{SignalID: existing.ID, Created: false}, nil
	}

	res, err := consensus(ctx, marketID)
	if err != nil {
		return TriggerOutcome{}, fmt.Errorf("consensus for market %s: %w", marketID, err)
	}
	if res.ConsensusPct < d.minConsensusPct {
		if d.logger != nil {
			d.logger.Info("consensus below threshold, no signal",
				applogger.String("market", marketID),
				applogger.Float64("consensus_pct", res.ConsensusPct),
				applogger.Float64("min_pct", d.minConsensusPct))
		}
		return TriggerOutcome{Skipped: true}, nil
	}

	var price float64
	if snap, err := d.prices.Latest(ctx, marketID); err == nil && snap != nil {
		price = snap.Price
	}

	level := models.ConfidenceLevelFor(res.ConsensusPct, d.highMin, d.mediumMin)
	sig := models.NewSignal(uuid.NewString(), trade, res, price, level, now)
	if err := d.signals.Put(ctx, sig); err != nil {
		return TriggerOutcome{}, fmt.Errorf("persist signal: %w", err)
	}

	if d.metrics != nil {
		d.metrics.RecordSignal(marketID, true)
	}
	if d.logger != nil {
		d.logger.Info("signal created",
			applogger.String("market", marketID),
			applogger.String("signal", sig.ID),
			applogger.String("decision", string(res.Decision)),
			applogger.Float64("consensus_pct", res.ConsensusPct))
	}
	return TriggerOutcome{SignalID: sig.ID, Created: true}, nil
}

package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"PolySwarm/internal/domain/models"
	drepo "PolySwarm/internal/domain/repository"
	applogger "PolySwarm/pkg/logger"
)

// TriggerThresholds carries the externally supplied detection tunables.
type TriggerThresholds struct {
	PriceMoveThreshold float64       // absolute YES-price delta, default 0.10
	PriceWindow        time.Duration // rolling comparison window, default 4h
	MovementExpiry     time.Duration // default 24h
	ContrarianWindow   time.Duration // how far back to look for a signal, default 24h
	ContrarianExpiry   time.Duration // default 24h
	ProximityExpiry    time.Duration // default 72h
	ProximityDays      int           // "near resolution" boundary, default 7
	SmartWinRate       float64       // default 0.55
	StrongWinRate      float64       // default 0.60
	SizeForMaxBonusUSD float64       // trade size earning the full size bonus
}

// TriggerDetector evaluates the three market-anomaly heuristics. Each
// detection is a single logical step: an atomic check-and-create in the
// trigger store, so a preexisting active trigger of the same (market, type)
// suppresses a new one even under concurrent invocations.
type TriggerDetector struct {
	triggers drepo.TriggerStore
	prices   drepo.PriceStore
	signals  drepo.SignalStore
	stats    drepo.TraderStatsStore
	th       TriggerThresholds
	metrics  drepo.Metrics
	logger   *applogger.Logger

	now func() time.Time
}

func NewTriggerDetector(triggers drepo.TriggerStore, prices drepo.PriceStore, signals drepo.SignalStore, stats drepo.TraderStatsStore, th TriggerThresholds, metrics drepo.Metrics, logger *applogger.Logger) *TriggerDetector {
	if th.PriceMoveThreshold <= 0 {
		th.PriceMoveThreshold = 0.10
	}
	if th.PriceWindow <= 0 {
		th.PriceWindow = 4 * time.Hour
	}
	if th.MovementExpiry <= 0 {
		th.MovementExpiry = 24 * time.Hour
	}
	if th.ContrarianWindow <= 0 {
		th.ContrarianWindow = 24 * time.Hour
	}
	if th.ContrarianExpiry <= 0 {
		th.ContrarianExpiry = 24 * time.Hour
	}
	if th.ProximityExpiry <= 0 {
		th.ProximityExpiry = 72 * time.Hour
	}
	if th.ProximityDays <= 0 {
		th.ProximityDays = 7
	}
	if th.SmartWinRate <= 0 {
		th.SmartWinRate = 0.55
	}
	if th.StrongWinRate <= 0 {
		th.StrongWinRate = 0.60
	}
	if th.SizeForMaxBonusUSD <= 0 {
		th.SizeForMaxBonusUSD = 50_000
	}
	return &TriggerDetector{
		triggers: triggers,
		prices:   prices,
		signals:  signals,
		stats:    stats,
		th:       th,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// DetectPriceMovement compares the current price against the oldest
// snapshot inside the rolling window. Returns the created trigger, or nil
// when nothing fired or an active one already exists.
func (d *TriggerDetector) DetectPriceMovement(ctx context.Context, marketID string, current float64) (*models.Trigger, error) {
	if active, err := d.triggers.Active(ctx, marketID, models.TriggerPriceMovement); err != nil {
		return nil, fmt.Errorf("check active trigger: %w", err)
	} else if active != nil {
		return nil, nil
	}

	now := d.now()
	window, err := d.prices.Window(ctx, marketID, now.Add(-d.th.PriceWindow), now)
	if err != nil {
		return nil, fmt.Errorf("price window: %w", err)
	}
	if len(window) == 0 {
		return nil, nil
	}

	oldest := window[0]
	delta := current - oldest.Price
	if math.Abs(delta) < d.th.PriceMoveThreshold {
		return nil, nil
	}

	direction := models.MovementUp
	if delta < 0 {
		direction = models.MovementDown
	}
	trig := &models.Trigger{
		ID:       uuid.NewString(),
		MarketID: marketID,
		Type:     models.TriggerPriceMovement,
		Status:   models.TriggerActive,
		Score:    math.Abs(delta) * 100,
		Payload: models.TriggerPayload{
			PriceMovement: &models.PriceMovementInfo{
				Direction: direction,
				OldPrice:  oldest.Price,
				NewPrice:  current,
				Delta:     delta,
			},
		},
		CreatedAt: now,
		ExpiresAt: now.Add(d.th.MovementExpiry),
	}
	return d.create(ctx, trig)
}

// DetectContrarianWhale fires when a large trade opposes the most recent
// trading signal for its market.
func (d *TriggerDetector) DetectContrarianWhale(ctx context.Context, trade models.WhaleTrade) (*models.Trigger, error) {
	if active, err := d.triggers.Active(ctx, trade.MarketID, models.TriggerContrarianWhale); err != nil {
		return nil, fmt.Errorf("check active trigger: %w", err)
	} else if active != nil {
		return nil, nil
	}

	now := d.now()
	sig, err := d.signals.LatestSince(ctx, trade.MarketID, now.Add(-d.th.ContrarianWindow))
	if err != nil {
		return nil, fmt.Errorf("latest signal: %w", err)
	}
	if sig == nil || !trade.Side.Opposes(sig.Consensus.Decision) {
		return nil, nil
	}

	score := 50.0
	info := &models.ContrarianWhaleInfo{
		TradeID:        trade.ID,
		Trader:         trade.Trader,
		TradeSide:      trade.Side,
		SignalDecision: sig.Consensus.Decision,
		SizeUSD:        trade.SizeUSD,
	}
	ts, err := d.stats.Get(ctx, trade.Trader)
	if err != nil && d.logger != nil {
		d.logger.Warn("trader stats lookup failed", applogger.Error(err))
	}
	if ts != nil {
		info.SmartMoney = ts.SmartMoney
		info.WinRate = ts.WinRate
		if ts.SmartMoney || ts.WinRate >= d.th.SmartWinRate {
			score += 30
		}
		if ts.WinRate > d.th.StrongWinRate {
			score += 20
		}
	}
	sizeBonus := trade.SizeUSD / d.th.SizeForMaxBonusUSD * 20
	if sizeBonus > 20 {
		sizeBonus = 20
	}
	score += sizeBonus

	trig := &models.Trigger{
		ID:        uuid.NewString(),
		MarketID:  trade.MarketID,
		Type:      models.TriggerContrarianWhale,
		Status:    models.TriggerActive,
		Score:     score,
		Payload:   models.TriggerPayload{ContrarianWhale: info},
		CreatedAt: now,
		ExpiresAt: now.Add(d.th.ContrarianExpiry),
	}
	return d.create(ctx, trig)
}

// DetectResolutionProximity fires when the market is close to resolving in
// time or the price sits near either bound.
func (d *TriggerDetector) DetectResolutionProximity(ctx context.Context, market models.Market, current float64) (*models.Trigger, error) {
	if active, err := d.triggers.Active(ctx, market.ID, models.TriggerResolutionProximity); err != nil {
		return nil, fmt.Errorf("check active trigger: %w", err)
	} else if active != nil {
		return nil, nil
	}

	now := d.now()
	extremity := models.ExtremityFor(current)
	days := market.DaysToResolution(now)
	nearResolution := days >= 0 && days <= d.th.ProximityDays
	priceExtreme := extremity == models.ExtremityHigh || extremity == models.ExtremityVeryHigh
	if !nearResolution && !priceExtreme {
		return nil, nil
	}

	score := extremityScore(extremity) + proximityScore(days)
	trig := &models.Trigger{
		ID:       uuid.NewString(),
		MarketID: market.ID,
		Type:     models.TriggerResolutionProximity,
		Status:   models.TriggerActive,
		Score:    score,
		Payload: models.TriggerPayload{
			ResolutionProximity: &models.ResolutionProximityInfo{
				Extremity:        extremity,
				Price:            current,
				DaysToResolution: days,
				NearResolution:   nearResolution,
			},
		},
		CreatedAt: now,
		ExpiresAt: now.Add(d.th.ProximityExpiry),
	}
	return d.create(ctx, trig)
}

// Sweep expires every active trigger past its lifetime.
func (d *TriggerDetector) Sweep(ctx context.Context) (int, error) {
	n, err := d.triggers.ExpireDue(ctx, d.now())
	if err != nil {
		return 0, fmt.Errorf("expire triggers: %w", err)
	}
	if n > 0 && d.logger != nil {
		d.logger.Info("triggers expired", applogger.Int("count", n))
	}
	return n, nil
}

// Consume transitions a trigger to triggered on behalf of a downstream
// consumer.
func (d *TriggerDetector) Consume(ctx context.Context, id string) error {
	return d.triggers.MarkTriggered(ctx, id)
}

// create runs the store's atomic check-and-create; a concurrent duplicate
// is a silent no-op.
func (d *TriggerDetector) create(ctx context.Context, trig *models.Trigger) (*models.Trigger, error) {
	created, err := d.triggers.CreateIfAbsent(ctx, trig)
	if err != nil {
		return nil, fmt.Errorf("create trigger: %w", err)
	}
	if !created {
		return nil, nil
	}
	if d.metrics != nil {
		d.metrics.RecordTrigger(string(trig.Type))
	}
	if d.logger != nil {
		d.logger.Info("trigger created",
			applogger.String("market", trig.MarketID),
			applogger.String("type", string(trig.Type)),
			applogger.Float64("score", trig.Score))
	}
	return trig, nil
}

// extremityScore contributes up to 40 points.
func extremityScore(e models.PriceExtremity) float64 {
	switch e {
	case models.ExtremityVeryHigh:
		return 40
	case models.ExtremityHigh:
		return 30
	case models.ExtremityMedium:
		return 15
	default:
		return 0
	}
}

// proximityScore contributes up to 40 points; unknown resolution dates
// contribute nothing.
func proximityScore(days int) float64 {
	switch {
	case days < 0:
		return 0
	case days <= 1:
		return 40
	case days <= 3:
		return 30
	case days <= 7:
		return 20
	default:
		return 0
	}
}

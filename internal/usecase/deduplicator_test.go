package usecase

import (
	"context"
	"testing"
	"time"

	"PolySwarm/internal/domain/models"
)

func testTrade(id, market string, size float64, ts time.Time) models.WhaleTrade {
	return models.WhaleTrade{
		ID:        id,
		MarketID:  market,
		Trader:    "0xwhale",
		Side:      models.DecisionYes,
		Price:     0.62,
		SizeUSD:   size,
		Timestamp: ts,
	}
}

func countingProvider(calls *int, pct float64) ConsensusProvider {
	return func(ctx context.Context, marketID string) (models.ConsensusResult, error) {
		*calls++
		return models.ConsensusResult{
			Decision:         models.DecisionYes,
			ConsensusPct:     pct,
			TotalModels:      4,
			SuccessfulModels: 4,
		}, nil
	}
}

func newTestDedup(signals *memSignalStore, prices *memPriceStore) *SignalDeduplicator {
	return NewSignalDeduplicator(signals, prices, DedupConfig{
		Window:          60 * time.Second,
		MinConsensusPct: 60,
		ConfidenceHigh:  80,
		ConfidenceMed:   60,
	}, nil, nil)
}

func TestHandleTriggerMergesWithinWindow(t *testing.T) {
	signals := newMemSignalStore()
	prices := &memPriceStore{}
	d := newTestDedup(signals, prices)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base }

	calls := 0
	provider := countingProvider(&calls, 75)

	first, err := d.HandleTrigger(context.Background(), "mkt-1", testTrade("t1", "mkt-1", 60_000, base), provider)
	if err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if !first.Created {
		t.Fatalf("first trigger did not create a signal")
	}

	d.now = func() time.Time { return base.Add(10 * time.Second) }
	second, err := d.HandleTrigger(context.Background(), "mkt-1", testTrade("t2", "mkt-1", 80_000, base.Add(10*time.Second)), provider)
	if err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if second.Created {
		t.Fatalf("second trigger created a new signal inside the window")
	}
	if second.SignalID != first.SignalID {
		t.Errorf("merged into %s, want %s", second.SignalID, first.SignalID)
	}
	if calls != 1 {
		t.Errorf("consensus ran %d times, want 1 (merges keep the original)", calls)
	}

	sig, _ := signals.Get(context.Background(), first.SignalID)
	if len(sig.TriggerTrades) != 2 {
		t.Errorf("len(TriggerTrades) = %d, want 2", len(sig.TriggerTrades))
	}
	if sig.Consensus.ConsensusPct != 75 {
		t.Errorf("merge altered consensus: %f", sig.Consensus.ConsensusPct)
	}
}

func TestHandleTriggerNewSignalPastWindow(t *testing.T) {
	signals := newMemSignalStore()
	prices := &memPriceStore{}
	d := newTestDedup(signals, prices)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base }

	calls := 0
	provider := countingProvider(&calls, 75)

	first, err := d.HandleTrigger(context.Background(), "mkt-1", testTrade("t1", "mkt-1", 60_000, base), provider)
	if err != nil {
		t.Fatalf("first trigger: %v", err)
	}

	d.now = func() time.Time { return base.Add(61 * time.Second) }
	second, err := d.HandleTrigger(context.Background(), "mkt-1", testTrade("t2", "mkt-1", 80_000, base.Add(61*time.Second)), provider)
	if err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if !second.Created {
		t.Fatalf("trade past the window did not create a new signal")
	}
	if second.SignalID == first.SignalID {
		t.Errorf("new signal reused the old ID")
	}
	if calls != 2 {
		t.Errorf("consensus ran %d times, want 2", calls)
	}
}

func TestHandleTriggerSkipsBelowThreshold(t *testing.T) {
	signals := newMemSignalStore()
	d := newTestDedup(signals, &memPriceStore{})

	calls := 0
	out, err := d.HandleTrigger(context.Background(), "mkt-1",
		testTrade("t1", "mkt-1", 60_000, time.Now()), countingProvider(&calls, 55))
	if err != nil {
		t.Fatalf("HandleTrigger: %v", err)
	}
	if !out.Skipped {
		t.Fatalf("outcome = %+v, want Skipped", out)
	}
	if out.SignalID != "" || out.Created {
		t.Errorf("skip outcome carries a signal: %+v", out)
	}
}

func TestHandleTriggerUsesLatestPrice(t *testing.T) {
	signals := newMemSignalStore()
	prices := &memPriceStore{}
	d := newTestDedup(signals, prices)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	_ = prices.Append(context.Background(), models.PriceSnapshot{MarketID: "mkt-1", Price: 0.41, Timestamp: now.Add(-time.Hour)})
	_ = prices.Append(context.Background(), models.PriceSnapshot{MarketID: "mkt-1", Price: 0.58, Timestamp: now.Add(-time.Minute)})

	calls := 0
	out, err := d.HandleTrigger(context.Background(), "mkt-1",
		testTrade("t1", "mkt-1", 60_000, now), countingProvider(&calls, 90))
	if err != nil {
		t.Fatalf("HandleTrigger: %v", err)
	}

	sig, _ := signals.Get(context.Background(), out.SignalID)
	if sig.PriceAtTrigger != 0.58 {
		t.Errorf("PriceAtTrigger = %f, want 0.58", sig.PriceAtTrigger)
	}
	if sig.ConfidenceLevel != models.ConfidenceHigh {
		t.Errorf("ConfidenceLevel = %s, want high at 90%%", sig.ConfidenceLevel)
	}
}

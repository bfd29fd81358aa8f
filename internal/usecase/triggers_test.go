package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"PolySwarm/internal/domain/models"
)

func defaultThresholds() TriggerThresholds {
	return TriggerThresholds{
		PriceMoveThreshold: 0.10,
		PriceWindow:        4 * time.Hour,
		MovementExpiry:     24 * time.Hour,
		ContrarianWindow:   24 * time.Hour,
		ContrarianExpiry:   24 * time.Hour,
		ProximityExpiry:    72 * time.Hour,
		ProximityDays:      7,
		SmartWinRate:       0.55,
		StrongWinRate:      0.60,
		SizeForMaxBonusUSD: 50_000,
	}
}

type detectorEnv struct {
	detector *TriggerDetector
	triggers *memTriggerStore
	prices   *memPriceStore
	signals  *memSignalStore
	stats    *memStatsStore
	now      time.Time
}

func newDetectorEnv(t *testing.T) *detectorEnv {
	t.Helper()
	env := &detectorEnv{
		triggers: newMemTriggerStore(),
		prices:   &memPriceStore{},
		signals:  newMemSignalStore(),
		stats:    &memStatsStore{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.detector = NewTriggerDetector(env.triggers, env.prices, env.signals, env.stats, defaultThresholds(), nil, nil)
	env.detector.now = func() time.Time { return env.now }
	env.triggers.now = func() time.Time { return env.now }
	return env
}

func (e *detectorEnv) snapshot(market string, price float64, age time.Duration) {
	_ = e.prices.Append(context.Background(), models.PriceSnapshot{
		MarketID:  market,
		Price:     price,
		Timestamp: e.now.Add(-age),
	})
}

func TestDetectPriceMovementFires(t *testing.T) {
	env := newDetectorEnv(t)
	env.snapshot("mkt", 0.40, 3*time.Hour)
	env.snapshot("mkt", 0.45, time.Hour)

	trig, err := env.detector.DetectPriceMovement(context.Background(), "mkt", 0.55)
	if err != nil {
		t.Fatalf("DetectPriceMovement: %v", err)
	}
	if trig == nil {
		t.Fatalf("no trigger for a 0.15 move against the oldest snapshot")
	}
	info := trig.Payload.PriceMovement
	if info.Direction != models.MovementUp || info.OldPrice != 0.40 {
		t.Errorf("payload = %+v, want up from 0.40", info)
	}
	if math.Abs(trig.Score-15) > 1e-9 {
		t.Errorf("Score = %f, want 15", trig.Score)
	}
	if !trig.ExpiresAt.Equal(env.now.Add(24 * time.Hour)) {
		t.Errorf("ExpiresAt = %v, want now+24h", trig.ExpiresAt)
	}
}

func TestDetectPriceMovementBelowThreshold(t *testing.T) {
	env := newDetectorEnv(t)
	env.snapshot("mkt", 0.50, time.Hour)

	trig, err := env.detector.DetectPriceMovement(context.Background(), "mkt", 0.59)
	if err != nil {
		t.Fatalf("DetectPriceMovement: %v", err)
	}
	if trig != nil {
		t.Fatalf("trigger fired on a 0.09 move, threshold is 0.10")
	}
}

func TestDetectPriceMovementSingleActiveInstance(t *testing.T) {
	env := newDetectorEnv(t)
	env.snapshot("mkt", 0.40, time.Hour)

	first, err := env.detector.DetectPriceMovement(context.Background(), "mkt", 0.60)
	if err != nil || first == nil {
		t.Fatalf("first detection: trig=%v err=%v", first, err)
	}
	second, err := env.detector.DetectPriceMovement(context.Background(), "mkt", 0.70)
	if err != nil {
		t.Fatalf("second detection: %v", err)
	}
	if second != nil {
		t.Fatalf("second active trigger created for the same (market, type)")
	}

	// After expiry, detection may fire again.
	env.now = env.now.Add(25 * time.Hour)
	env.snapshot("mkt", 0.40, time.Hour)
	third, err := env.detector.DetectPriceMovement(context.Background(), "mkt", 0.70)
	if err != nil {
		t.Fatalf("post-expiry detection: %v", err)
	}
	if third == nil {
		t.Fatalf("no trigger after the previous one expired")
	}
}

func seedSignal(t *testing.T, env *detectorEnv, market string, decision models.Decision, age time.Duration) {
	t.Helper()
	sig := models.NewSignal("sig-1",
		models.WhaleTrade{ID: "seed", MarketID: market, Side: decision},
		models.ConsensusResult{Decision: decision, ConsensusPct: 80},
		0.6, models.ConfidenceHigh, env.now.Add(-age))
	if err := env.signals.Put(context.Background(), sig); err != nil {
		t.Fatalf("seed signal: %v", err)
	}
}

func TestDetectContrarianWhaleScoring(t *testing.T) {
	cases := []struct {
		name      string
		stats     *models.TraderStats
		sizeUSD   float64
		wantScore float64
	}{
		{"unknown trader", nil, 25_000, 50 + 10},
		{"smart money", &models.TraderStats{SmartMoney: true, WinRate: 0.50}, 50_000, 50 + 30 + 20},
		{"strong win rate", &models.TraderStats{WinRate: 0.70}, 50_000, 50 + 30 + 20 + 20},
		{"size bonus capped", &models.TraderStats{WinRate: 0.30}, 500_000, 50 + 20},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newDetectorEnv(t)
			seedSignal(t, env, "mkt", models.DecisionYes, time.Hour)
			if tc.stats != nil {
				tc.stats.Address = "0xwhale"
				env.stats.stats = map[string]*models.TraderStats{"0xwhale": tc.stats}
			}

			trade := models.WhaleTrade{
				ID: "t1", MarketID: "mkt", Trader: "0xwhale",
				Side: models.DecisionNo, Price: 0.4, SizeUSD: tc.sizeUSD,
				Timestamp: env.now,
			}
			trig, err := env.detector.DetectContrarianWhale(context.Background(), trade)
			if err != nil {
				t.Fatalf("DetectContrarianWhale: %v", err)
			}
			if trig == nil {
				t.Fatalf("no trigger for an opposing whale")
			}
			if math.Abs(trig.Score-tc.wantScore) > 1e-9 {
				t.Errorf("Score = %f, want %f", trig.Score, tc.wantScore)
			}
		})
	}
}

func TestDetectContrarianWhaleRequiresOpposition(t *testing.T) {
	env := newDetectorEnv(t)
	seedSignal(t, env, "mkt", models.DecisionYes, time.Hour)

	aligned := models.WhaleTrade{ID: "t1", MarketID: "mkt", Trader: "0xw", Side: models.DecisionYes, SizeUSD: 90_000, Timestamp: env.now}
	if trig, _ := env.detector.DetectContrarianWhale(context.Background(), aligned); trig != nil {
		t.Fatalf("trigger fired for a trade aligned with the signal")
	}
}

func TestDetectContrarianWhaleIgnoresStaleSignal(t *testing.T) {
	env := newDetectorEnv(t)
	seedSignal(t, env, "mkt", models.DecisionYes, 25*time.Hour)

	opposing := models.WhaleTrade{ID: "t1", MarketID: "mkt", Trader: "0xw", Side: models.DecisionNo, SizeUSD: 90_000, Timestamp: env.now}
	if trig, _ := env.detector.DetectContrarianWhale(context.Background(), opposing); trig != nil {
		t.Fatalf("trigger fired against a signal outside the lookback window")
	}
}

func TestDetectResolutionProximity(t *testing.T) {
	end := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC) // 2 days out

	cases := []struct {
		name      string
		market    models.Market
		price     float64
		wantFire  bool
		wantScore float64
	}{
		{"extreme price, no end date", models.Market{ID: "m1"}, 0.93, true, 40},
		{"high price only", models.Market{ID: "m2"}, 0.85, true, 30},
		{"near resolution, mid price", models.Market{ID: "m3", EndDate: &end}, 0.50, true, 30},
		{"near resolution and extreme", models.Market{ID: "m4", EndDate: &end}, 0.05, true, 40 + 30},
		{"nothing notable", models.Market{ID: "m5"}, 0.50, false, 0},
		{"medium extremity alone does not fire", models.Market{ID: "m6"}, 0.72, false, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newDetectorEnv(t)
			trig, err := env.detector.DetectResolutionProximity(context.Background(), tc.market, tc.price)
			if err != nil {
				t.Fatalf("DetectResolutionProximity: %v", err)
			}
			if (trig != nil) != tc.wantFire {
				t.Fatalf("fired = %v, want %v", trig != nil, tc.wantFire)
			}
			if trig != nil && math.Abs(trig.Score-tc.wantScore) > 1e-9 {
				t.Errorf("Score = %f, want %f", trig.Score, tc.wantScore)
			}
		})
	}
}

func TestSweepExpiresDueTriggers(t *testing.T) {
	env := newDetectorEnv(t)
	env.snapshot("mkt", 0.40, time.Hour)
	if trig, _ := env.detector.DetectPriceMovement(context.Background(), "mkt", 0.60); trig == nil {
		t.Fatalf("setup: no trigger created")
	}

	env.now = env.now.Add(25 * time.Hour)
	n, err := env.detector.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired %d triggers, want 1", n)
	}
	active, _ := env.triggers.ActiveByMarket(context.Background(), "mkt")
	if len(active) != 0 {
		t.Errorf("still %d active triggers after sweep", len(active))
	}
}

func TestConsumeMarksTriggered(t *testing.T) {
	env := newDetectorEnv(t)
	env.snapshot("mkt", 0.40, time.Hour)
	trig, _ := env.detector.DetectPriceMovement(context.Background(), "mkt", 0.60)
	if trig == nil {
		t.Fatalf("setup: no trigger created")
	}

	if err := env.detector.Consume(context.Background(), trig.ID); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	got, _ := env.triggers.Get(context.Background(), trig.ID)
	if got.Status != models.TriggerTriggered {
		t.Errorf("Status = %s, want triggered", got.Status)
	}
}

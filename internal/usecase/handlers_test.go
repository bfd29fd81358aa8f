package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"PolySwarm/internal/domain/models"
)

// failingMarketStore rejects every upsert so the handlers hit their warning
// paths.
type failingMarketStore struct{}

func (failingMarketStore) Upsert(context.Context, models.Market) error {
	return errors.New("store down")
}

func (failingMarketStore) Get(context.Context, string) (*models.Market, error) {
	return nil, nil
}

func TestWhaleTradeHandlerNilLoggerSurvivesUpsertFailure(t *testing.T) {
	env := newDetectorEnv(t)
	h := NewWhaleTradeHandler("trades", 10_000, failingMarketStore{}, env.detector, nil, nil, nil, nil)

	payload, _ := json.Marshal(models.TradeEvent{
		Trade:  models.WhaleTrade{ID: "t1", MarketID: "mkt", SizeUSD: 500},
		Market: &models.Market{ID: "mkt"},
	})
	if err := h.Handle(context.Background(), payload); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

func TestPriceHandlerNilLoggerSurvivesUpsertFailure(t *testing.T) {
	env := newDetectorEnv(t)
	h := NewPriceHandler("prices", env.prices, failingMarketStore{}, env.detector, nil, nil)

	payload, _ := json.Marshal(models.PriceEvent{
		Snapshot: models.PriceSnapshot{MarketID: "mkt", Price: 0.5, Timestamp: env.now},
		Market:   &models.Market{ID: "mkt"},
	})
	if err := h.Handle(context.Background(), payload); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if latest, _ := env.prices.Latest(context.Background(), "mkt"); latest == nil {
		t.Fatal("snapshot not appended")
	}
}

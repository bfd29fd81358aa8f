package repository

import (
	"context"
	"time"

	"PolySwarm/internal/domain/models"
)

// SignalStore persists trading signals. Implementations provide point
// get/put, a (market, timestamp) range lookup, and an atomic single-record
// trade append; no multi-record transactions are required.
type SignalStore interface {
	Put(ctx context.Context, s *models.Signal) error
	Get(ctx context.Context, id string) (*models.Signal, error)
	// LatestSince returns the most recent signal for the market with
	// Timestamp >= since, or nil when none exists.
	LatestSince(ctx context.Context, marketID string, since time.Time) (*models.Signal, error)
	// AppendTrade appends a trade to an existing signal as a single
	// atomic record update.
	AppendTrade(ctx context.Context, signalID string, t models.WhaleTrade) error
	Recent(ctx context.Context, marketID string, limit int) ([]*models.Signal, error)
}

// TriggerStore persists anomaly triggers and owns the single-active-instance
// guard for (market, type).
type TriggerStore interface {
	// Active returns the active trigger for (market, type), or nil. A
	// trigger past its expiry is reported expired, not active.
	Active(ctx context.Context, marketID string, typ models.TriggerType) (*models.Trigger, error)
	// CreateIfAbsent atomically creates the trigger unless an active one
	// of the same (market, type) already exists. Returns false when
	// creation was suppressed.
	CreateIfAbsent(ctx context.Context, t *models.Trigger) (bool, error)
	Get(ctx context.Context, id string) (*models.Trigger, error)
	// MarkTriggered transitions active -> triggered.
	MarkTriggered(ctx context.Context, id string) error
	// ExpireDue transitions every active trigger past its expiry to
	// expired and returns how many were flipped.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	ActiveByMarket(ctx context.Context, marketID string) ([]*models.Trigger, error)
}

// PriceStore is the append-only price time series.
type PriceStore interface {
	Append(ctx context.Context, snap models.PriceSnapshot) error
	// Window returns snapshots in [from, to] ordered oldest first.
	Window(ctx context.Context, marketID string, from, to time.Time) ([]models.PriceSnapshot, error)
	Latest(ctx context.Context, marketID string) (*models.PriceSnapshot, error)
}

// MarketStore keeps the metadata of markets seen on the feed. A missing
// market yields (nil, nil).
type MarketStore interface {
	Upsert(ctx context.Context, m models.Market) error
	Get(ctx context.Context, id string) (*models.Market, error)
}

// TraderStatsStore looks up trader performance profiles. A missing trader
// yields (nil, nil).
type TraderStatsStore interface {
	Get(ctx context.Context, address string) (*models.TraderStats, error)
}

// MarketStream is a live feed of trades and price changes across the
// subscribed markets.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	// Read starts the pump. Both channels close when the feed dies; the
	// error channel then carries the terminal cause.
	Read(ctx context.Context) (<-chan models.TradeEvent, <-chan models.PriceEvent, <-chan error)
	Reconnect(ctx context.Context) error
	IsConnected() bool
	Close() error
}

// Metrics records operational counters and latencies.
type Metrics interface {
	RecordVote(modelID string, ok bool)
	RecordSignal(marketID string, created bool)
	RecordTrigger(typ string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordLastPrice(marketID string, price float64)
}

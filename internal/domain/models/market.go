package models

import "time"

// Market describes a prediction market at the point of analysis.
type Market struct {
	ID       string     `json:"id"`
	Question string     `json:"question"`
	EndDate  *time.Time `json:"end_date,omitempty"` // resolution date, if known
}

// DaysToResolution returns whole days until the market resolves, or -1
// when no end date is known.
func (m Market) DaysToResolution(now time.Time) int {
	if m.EndDate == nil {
		return -1
	}
	d := m.EndDate.Sub(now)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// WhaleTrade is a large trade observed on a market.
type WhaleTrade struct {
	ID        string    `json:"id"`
	MarketID  string    `json:"market_id"`
	Trader    string    `json:"trader"`
	Side      Decision  `json:"side"` // YES or NO: the outcome the whale is backing
	Price     float64   `json:"price"`
	SizeUSD   float64   `json:"size_usd"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceSnapshot is one observation of a market's YES price. The series is
// append-only; retention is an external concern.
type PriceSnapshot struct {
	MarketID  string    `json:"market_id"`
	Price     float64   `json:"price"` // 0..1
	Timestamp time.Time `json:"timestamp"`
}

// TradeEvent is the wire envelope for a whale trade on the trades topic.
// Market metadata rides along when the feed knows it.
type TradeEvent struct {
	Trade  WhaleTrade `json:"trade"`
	Market *Market    `json:"market,omitempty"`
}

// PriceEvent is the wire envelope for a price observation on the prices
// topic.
type PriceEvent struct {
	Snapshot PriceSnapshot `json:"snapshot"`
	Market   *Market       `json:"market,omitempty"`
}

// TraderStats is a trader's historical performance profile.
type TraderStats struct {
	Address    string  `json:"address"`
	WinRate    float64 `json:"win_rate"` // 0..1
	TradeCount int     `json:"trade_count"`
	SmartMoney bool    `json:"smart_money"`
}

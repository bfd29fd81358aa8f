package models

import "time"

// Signal is a durable trading signal created once per (market, dedup window).
// TriggerTrades only grows while the signal is inside the window; the
// consensus computed at creation time stands for every merged trade.
type Signal struct {
	ID              string          `json:"id"`
	MarketID        string          `json:"market_id"`
	TriggerTrades   []WhaleTrade    `json:"trigger_trades"`
	Consensus       ConsensusResult `json:"consensus"`
	PriceAtTrigger  float64         `json:"price_at_trigger"`
	Timestamp       time.Time       `json:"signal_timestamp"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
}

// NewSignal seeds a signal with its first triggering trade.
func NewSignal(id string, trade WhaleTrade, consensus ConsensusResult, price float64, level ConfidenceLevel, ts time.Time) *Signal {
	return &Signal{
		ID:              id,
		MarketID:        trade.MarketID,
		TriggerTrades:   []WhaleTrade{trade},
		Consensus:       consensus,
		PriceAtTrigger:  price,
		Timestamp:       ts,
		ConfidenceLevel: level,
	}
}

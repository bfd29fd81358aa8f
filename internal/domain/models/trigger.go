package models

import "time"

// TriggerType identifies a market-anomaly heuristic.
type TriggerType string

const (
	TriggerPriceMovement       TriggerType = "price_movement"
	TriggerContrarianWhale     TriggerType = "contrarian_whale"
	TriggerResolutionProximity TriggerType = "resolution_proximity"
)

// TriggerTypes lists every known heuristic.
func TriggerTypes() []TriggerType {
	return []TriggerType{TriggerPriceMovement, TriggerContrarianWhale, TriggerResolutionProximity}
}

// TriggerStatus is the trigger lifecycle state. active -> triggered and
// active -> expired are the only transitions; both are terminal.
type TriggerStatus string

const (
	TriggerActive    TriggerStatus = "active"
	TriggerTriggered TriggerStatus = "triggered"
	TriggerExpired   TriggerStatus = "expired"
)

// MovementDirection is the sign of a detected price move.
type MovementDirection string

const (
	MovementUp   MovementDirection = "up"
	MovementDown MovementDirection = "down"
)

// PriceExtremity buckets how close a price sits to either bound.
type PriceExtremity string

const (
	ExtremityVeryHigh PriceExtremity = "very_high" // max(p, 1-p) >= 0.90
	ExtremityHigh     PriceExtremity = "high"      // >= 0.80
	ExtremityMedium   PriceExtremity = "medium"    // >= 0.70
	ExtremityLow      PriceExtremity = "low"
)

// PriceMovementInfo is the payload of a price_movement trigger.
type PriceMovementInfo struct {
	Direction MovementDirection `json:"direction"`
	OldPrice  float64           `json:"old_price"`
	NewPrice  float64           `json:"new_price"`
	Delta     float64           `json:"delta"`
}

// ContrarianWhaleInfo is the payload of a contrarian_whale trigger.
type ContrarianWhaleInfo struct {
	TradeID        string   `json:"trade_id"`
	Trader         string   `json:"trader"`
	TradeSide      Decision `json:"trade_side"`
	SignalDecision Decision `json:"signal_decision"`
	SizeUSD        float64  `json:"size_usd"`
	SmartMoney     bool     `json:"smart_money"`
	WinRate        float64  `json:"win_rate"`
}

// ResolutionProximityInfo is the payload of a resolution_proximity trigger.
type ResolutionProximityInfo struct {
	Extremity        PriceExtremity `json:"extremity"`
	Price            float64        `json:"price"`
	DaysToResolution int            `json:"days_to_resolution"` // -1 when unknown
	NearResolution   bool           `json:"near_resolution"`
}

// TriggerPayload holds the type-specific trigger detail; exactly one field
// matches the trigger's Type.
type TriggerPayload struct {
	PriceMovement       *PriceMovementInfo       `json:"price_movement,omitempty"`
	ContrarianWhale     *ContrarianWhaleInfo     `json:"contrarian_whale,omitempty"`
	ResolutionProximity *ResolutionProximityInfo `json:"resolution_proximity,omitempty"`
}

// Trigger is a time-bounded market-anomaly record. At most one active
// trigger of a given (market, type) exists at any time.
type Trigger struct {
	ID        string         `json:"id"`
	MarketID  string         `json:"market_id"`
	Type      TriggerType    `json:"type"`
	Status    TriggerStatus  `json:"status"`
	Score     float64        `json:"score"`
	Payload   TriggerPayload `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// ExpiredBy reports whether the trigger's lifetime has passed at now.
func (t *Trigger) ExpiredBy(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// ExtremityFor buckets a YES price by its distance from the nearest bound.
func ExtremityFor(price float64) PriceExtremity {
	ext := price
	if 1-price > ext {
		ext = 1 - price
	}
	switch {
	case ext >= 0.90:
		return ExtremityVeryHigh
	case ext >= 0.80:
		return ExtremityHigh
	case ext >= 0.70:
		return ExtremityMedium
	default:
		return ExtremityLow
	}
}

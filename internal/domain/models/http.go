package models

// SignalsRequest filters the recent-signals endpoint.
type SignalsRequest struct {
	Market string `query:"market" validate:"required"`
	Limit  int    `query:"limit" default:"20" validate:"min=1,max=200"`
}

// TriggersRequest filters the active-triggers endpoint.
type TriggersRequest struct {
	Market string `query:"market" validate:"required"`
}

// AnalyzeRequest asks for an on-demand swarm analysis of a market.
type AnalyzeRequest struct {
	MarketID string `json:"market_id" validate:"required"`
	Question string `json:"question" validate:"required"`
	EndDate  string `json:"end_date,omitempty"` // RFC3339 or unix seconds, optional
}

// ConsumeTriggerRequest marks an active trigger as consumed downstream.
type ConsumeTriggerRequest struct {
	ID string `param:"id" validate:"required"`
}

package models

import "time"

// Decision is a model's verdict on a market.
type Decision string

const (
	DecisionYes     Decision = "YES"
	DecisionNo      Decision = "NO"
	DecisionNoTrade Decision = "NO_TRADE"
)

// IsTrading reports whether the decision commits to a side.
func (d Decision) IsTrading() bool {
	return d == DecisionYes || d == DecisionNo
}

// Opposes reports whether two trading decisions take opposite sides.
// A NO_TRADE decision never opposes anything.
func (d Decision) Opposes(other Decision) bool {
	if !d.IsTrading() || !other.IsTrading() {
		return false
	}
	return d != other
}

// Prediction is a successful model opinion.
type Prediction struct {
	Decision   Decision `json:"decision"`
	Confidence float64  `json:"confidence"` // 0..100
	KeyFactors []string `json:"key_factors"`
	Risks      []string `json:"risks"`
	Summary    string   `json:"summary"`
}

// ModelVote is the outcome of one model call. Exactly one of Prediction
// or Err is populated; the constructors below are the only way votes are
// built so the invariant holds structurally.
type ModelVote struct {
	ModelID    string        `json:"model_id"`
	Elapsed    time.Duration `json:"elapsed"`
	Prediction *Prediction   `json:"prediction,omitempty"`
	Err        string        `json:"error,omitempty"`
}

// NewVote wraps a successful prediction.
func NewVote(modelID string, p Prediction, elapsed time.Duration) ModelVote {
	return ModelVote{ModelID: modelID, Prediction: &p, Elapsed: elapsed}
}

// NewFailedVote wraps a terminal call failure.
func NewFailedVote(modelID, reason string, elapsed time.Duration) ModelVote {
	return ModelVote{ModelID: modelID, Err: reason, Elapsed: elapsed}
}

// OK reports whether the vote carries a prediction.
func (v ModelVote) OK() bool { return v.Prediction != nil }

// Synthesis is the narrative part of a consensus, produced either by a
// secondary aggregation model or by the deterministic fallback.
type Synthesis struct {
	KeyFactors []string `json:"key_factors"`
	Risks      []string `json:"risks"`
	Reasoning  string   `json:"reasoning"`
}

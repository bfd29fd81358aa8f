package models

// VoteDistribution counts successful votes per decision.
type VoteDistribution struct {
	Yes     int `json:"yes"`
	No      int `json:"no"`
	NoTrade int `json:"no_trade"`
}

// Total returns the number of counted votes.
func (d VoteDistribution) Total() int { return d.Yes + d.No + d.NoTrade }

// ConfidenceRange is the min/max confidence among the winning-side votes.
type ConfidenceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ConfidenceLevel buckets a consensus percentage for downstream consumers.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// ConfidenceLevelFor maps a consensus percentage onto a level using the
// configured band boundaries.
func ConfidenceLevelFor(pct, highMin, mediumMin float64) ConfidenceLevel {
	switch {
	case pct >= highMin:
		return ConfidenceHigh
	case pct >= mediumMin:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ConsensusResult is the single decision derived from a swarm run.
//
// Invariants: SuccessfulModels <= TotalModels; Distribution counts sum to
// SuccessfulModels; SuccessfulModels == 0 implies Decision == NO_TRADE and
// ConsensusPct == 0.
type ConsensusResult struct {
	Decision         Decision         `json:"decision"`
	ConsensusPct     float64          `json:"consensus_percentage"` // 0..100, vote-count ratio
	TotalModels      int              `json:"total_models"`
	SuccessfulModels int              `json:"successful_models"`
	Distribution     VoteDistribution `json:"vote_distribution"`
	AvgConfidence    float64          `json:"average_confidence"`
	ConfidenceRange  ConfidenceRange  `json:"confidence_range"`
	KeyFactors       []string         `json:"key_factors"`
	Risks            []string         `json:"risks"`
	Reasoning        string           `json:"reasoning"`
}

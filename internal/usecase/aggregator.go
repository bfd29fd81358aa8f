package usecase

import (
	"context"
	"strings"

	"PolySwarm/internal/domain/models"
	domsvc "PolySwarm/internal/domain/service"
	applogger "PolySwarm/pkg/logger"
	"PolySwarm/pkg/util"
)

const (
	maxKeyFactors   = 5
	maxRisks        = 3
	maxReasoningLen = 500
)

// ConsensusAggregator turns a swarm's vote vector into one decision. The
// winner is picked by confidence-weighted score; the consensus percentage
// reported downstream is a plain vote-count ratio. Confidence decides, vote
// share communicates.
type ConsensusAggregator struct {
	synth  domsvc.Synthesizer // nil means always use the fallback
	logger *applogger.Logger
}

func NewConsensusAggregator(synth domsvc.Synthesizer, logger *applogger.Logger) *ConsensusAggregator {
	return &ConsensusAggregator{synth: synth, logger: logger}
}

// Aggregate computes the consensus over all votes of one orchestrator run.
func (a *ConsensusAggregator) Aggregate(ctx context.Context, votes []models.ModelVote) models.ConsensusResult {
	res := models.ConsensusResult{
		Decision:    models.DecisionNoTrade,
		TotalModels: len(votes),
	}

	var successful []models.ModelVote
	for _, v := range votes {
		if v.OK() {
			successful = append(successful, v)
		}
	}
	res.SuccessfulModels = len(successful)

	if len(successful) == 0 {
		a.applySynthesis(ctx, &res, nil)
		return res
	}

	for _, v := range successful {
		switch v.Prediction.Decision {
		case models.DecisionYes:
			res.Distribution.Yes++
		case models.DecisionNo:
			res.Distribution.No++
		default:
			res.Distribution.NoTrade++
		}
	}

	trading := res.Distribution.Yes + res.Distribution.No
	if trading == 0 {
		// full agreement on abstaining; stats cover all successful votes
		res.ConsensusPct = 100
		res.AvgConfidence, res.ConfidenceRange = confidenceStats(successful)
		a.applySynthesis(ctx, &res, successful)
		return res
	}

	var scoreYes, scoreNo float64
	for _, v := range successful {
		switch v.Prediction.Decision {
		case models.DecisionYes:
			scoreYes += v.Prediction.Confidence
		case models.DecisionNo:
			scoreNo += v.Prediction.Confidence
		}
	}
	switch {
	case scoreYes > scoreNo:
		res.Decision = models.DecisionYes
	case scoreNo > scoreYes:
		res.Decision = models.DecisionNo
	default:
		// exact tie: abstain rather than guess
		res.Decision = models.DecisionNoTrade
	}

	agreeing := votesFor(successful, res.Decision)
	res.ConsensusPct = float64(len(agreeing)) / float64(len(successful)) * 100
	res.AvgConfidence, res.ConfidenceRange = confidenceStats(agreeing)

	a.applySynthesis(ctx, &res, agreeing)
	return res
}

// applySynthesis fills the narrative fields, falling back deterministically
// when the secondary model is absent or fails. Caps are enforced on both
// paths.
func (a *ConsensusAggregator) applySynthesis(ctx context.Context, res *models.ConsensusResult, agreeing []models.ModelVote) {
	var syn models.Synthesis
	if a.synth != nil {
		out, err := a.synth.Synthesize(ctx, res.Decision, agreeing)
		if err == nil {
			syn = out
		} else {
			if a.logger != nil {
				a.logger.Warn("synthesis failed, using fallback", applogger.Error(err))
			}
			syn = fallbackSynthesis(agreeing)
		}
	} else {
		syn = fallbackSynthesis(agreeing)
	}

	if len(syn.KeyFactors) > maxKeyFactors {
		syn.KeyFactors = syn.KeyFactors[:maxKeyFactors]
	}
	if len(syn.Risks) > maxRisks {
		syn.Risks = syn.Risks[:maxRisks]
	}
	res.KeyFactors = syn.KeyFactors
	res.Risks = syn.Risks
	res.Reasoning = util.TruncateRunes(syn.Reasoning, maxReasoningLen)
}

// fallbackSynthesis is the deterministic, side-effect-free synthesis path:
// case-insensitive-trimmed dedup in first-seen order, summaries joined by
// " | ".
func fallbackSynthesis(agreeing []models.ModelVote) models.Synthesis {
	var (
		factors   []string
		risks     []string
		summaries []string
	)
	for _, v := range agreeing {
		factors = append(factors, v.Prediction.KeyFactors...)
		risks = append(risks, v.Prediction.Risks...)
		if s := strings.TrimSpace(v.Prediction.Summary); s != "" {
			summaries = append(summaries, s)
		}
	}
	return models.Synthesis{
		KeyFactors: dedupeStrings(factors, maxKeyFactors),
		Risks:      dedupeStrings(risks, maxRisks),
		Reasoning:  util.TruncateRunes(strings.Join(summaries, " | "), maxReasoningLen),
	}
}

// dedupeStrings keeps the first occurrence of each case-insensitive-trimmed
// string, up to max entries.
func dedupeStrings(in []string, max int) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
		if len(out) == max {
			break
		}
	}
	return out
}

func votesFor(votes []models.ModelVote, d models.Decision) []models.ModelVote {
	var out []models.ModelVote
	for _, v := range votes {
		if v.Prediction.Decision == d {
			out = append(out, v)
		}
	}
	return out
}

func confidenceStats(votes []models.ModelVote) (avg float64, rng models.ConfidenceRange) {
	if len(votes) == 0 {
		return 0, models.ConfidenceRange{}
	}
	rng.Min = votes[0].Prediction.Confidence
	rng.Max = rng.Min
	var sum float64
	for _, v := range votes {
		c := v.Prediction.Confidence
		sum += c
		if c < rng.Min {
			rng.Min = c
		}
		if c > rng.Max {
			rng.Max = c
		}
	}
	return sum / float64(len(votes)), rng
}

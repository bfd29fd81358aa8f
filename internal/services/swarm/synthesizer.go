package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PolySwarm/internal/domain/models"
	"PolySwarm/pkg/http"
	"PolySwarm/pkg/logger"
	"PolySwarm/pkg/retry"
	"PolySwarm/pkg/util"
)

// Synthesizer runs the secondary aggregation call against a single
// designated model. Failures surface as errors so the aggregator can fall
// back to its deterministic synthesis.
type Synthesizer struct {
	http   *http.Client
	cfg    Config
	model  string
	policy retry.Policy
	logger *logger.Logger
}

// NewSynthesizer creates a synthesizer bound to one model.
func NewSynthesizer(cfg Config, model string, policy retry.Policy, log *logger.Logger) *Synthesizer {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	return &Synthesizer{
		http:   http.NewClient(http.WithTimeout(cfg.CallTimeout)),
		cfg:    cfg,
		model:  model,
		policy: policy,
		logger: log,
	}
}

type synthesisPayload struct {
	KeyFactors []string `json:"key_factors"`
	Risks      []string `json:"risks"`
	Reasoning  string   `json:"reasoning"`
}

// Synthesize condenses the agreeing votes into factors, risks and reasoning.
func (s *Synthesizer) Synthesize(ctx context.Context, decision models.Decision, agreeing []models.ModelVote) (models.Synthesis, error) {
	prompt := buildSynthesisPrompt(decision, agreeing)

	var payload synthesisPayload
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()

		var resp completionResponse
		if err := s.http.SendAndParse(callCtx, &http.RequestOptions{
			Method: http.MethodPost,
			URL:    s.cfg.BaseURL + "/v1/completions",
			Headers: map[string]string{
				"Authorization": "Bearer " + s.cfg.APIKey,
			},
			Body: completionRequest{
				Model:          s.model,
				System:         synthesisSystemPrompt,
				Prompt:         prompt,
				ResponseSchema: synthesisSchema,
			},
		}, &resp); err != nil {
			return err
		}
		return json.Unmarshal(resp.Content, &payload)
	})
	if err != nil {
		s.logger.Warn("synthesis call failed",
			logger.String("model", s.model),
			logger.Int("agreeing", len(agreeing)),
			logger.Error(err))
		return models.Synthesis{}, fmt.Errorf("synthesize: %w", err)
	}

	if len(payload.KeyFactors) > maxKeyFactors {
		payload.KeyFactors = payload.KeyFactors[:maxKeyFactors]
	}
	if len(payload.Risks) > maxRisks {
		payload.Risks = payload.Risks[:maxRisks]
	}

	return models.Synthesis{
		KeyFactors: payload.KeyFactors,
		Risks:      payload.Risks,
		Reasoning:  util.TruncateRunes(payload.Reasoning, maxSummaryLen),
	}, nil
}

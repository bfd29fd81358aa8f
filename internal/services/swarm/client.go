package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PolySwarm/internal/domain/models"
	"PolySwarm/internal/service/ratelimit"
	"PolySwarm/pkg/http"
	"PolySwarm/pkg/logger"
	"PolySwarm/pkg/util"
)

const (
	maxKeyFactors = 5
	maxRisks      = 3
	maxSummaryLen = 500
)

// Config holds swarm API connection settings.
type Config struct {
	BaseURL      string
	APIKey       string
	CallTimeout  time.Duration
	RateCapacity float64
	RateRefill   float64
}

// Client queries structured-output prediction models over the swarm HTTP
// API. Every failure mode is folded into an error vote so the orchestrator
// only ever deals with ModelVote values.
type Client struct {
	http    *http.Client
	cfg     Config
	limiter *ratelimit.Limiter
	logger  *logger.Logger
}

// NewClient creates a swarm API client.
func NewClient(cfg Config, limiter *ratelimit.Limiter, log *logger.Logger) *Client {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	return &Client{
		http:    http.NewClient(http.WithTimeout(cfg.CallTimeout)),
		cfg:     cfg,
		limiter: limiter,
		logger:  log,
	}
}

type completionRequest struct {
	Model          string          `json:"model"`
	System         string          `json:"system"`
	Prompt         string          `json:"prompt"`
	ResponseSchema json.RawMessage `json:"response_schema"`
}

type completionResponse struct {
	Content json.RawMessage `json:"content"`
}

type votePayload struct {
	Decision   string   `json:"decision"`
	Confidence float64  `json:"confidence"`
	KeyFactors []string `json:"key_factors"`
	Risks      []string `json:"risks"`
	Summary    string   `json:"summary"`
}

// Query issues one model call and returns a vote, never an error.
func (c *Client) Query(ctx context.Context, modelID, systemPrompt, userPrompt string) models.ModelVote {
	start := time.Now()

	if c.limiter != nil && c.cfg.RateCapacity > 0 {
		deadline := start.Add(c.cfg.CallTimeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if !c.limiter.Wait("swarm:"+modelID, c.cfg.RateCapacity, c.cfg.RateRefill, deadline) {
			return models.NewFailedVote(modelID, "rate limit wait exceeded call budget", time.Since(start))
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	var resp completionResponse
	err := c.http.SendAndParse(callCtx, &http.RequestOptions{
		Method: http.MethodPost,
		URL:    c.cfg.BaseURL + "/v1/completions",
		Headers: map[string]string{
			"Authorization": "Bearer " + c.cfg.APIKey,
		},
		Body: completionRequest{
			Model:          modelID,
			System:         systemPrompt,
			Prompt:         userPrompt,
			ResponseSchema: voteSchema,
		},
	}, &resp)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Warn("swarm call failed",
			logger.String("model", modelID),
			logger.Duration("elapsed", elapsed),
			logger.Error(err))
		return models.NewFailedVote(modelID, err.Error(), elapsed)
	}

	var payload votePayload
	if err := json.Unmarshal(resp.Content, &payload); err != nil {
		return models.NewFailedVote(modelID, fmt.Sprintf("malformed response: %v", err), elapsed)
	}

	pred, err := normalize(payload)
	if err != nil {
		return models.NewFailedVote(modelID, err.Error(), elapsed)
	}

	return models.NewVote(modelID, pred, elapsed)
}

// normalize validates the decision and key factor presence, then clamps the
// rest into range. Out-of-range numerics and oversized lists are repaired
// rather than rejected.
func normalize(p votePayload) (models.Prediction, error) {
	decision := models.Decision(p.Decision)
	switch decision {
	case models.DecisionYes, models.DecisionNo, models.DecisionNoTrade:
	default:
		return models.Prediction{}, fmt.Errorf("unknown decision %q", p.Decision)
	}

	if len(p.KeyFactors) == 0 {
		return models.Prediction{}, fmt.Errorf("missing key factors")
	}

	confidence := p.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	factors := p.KeyFactors
	if len(factors) > maxKeyFactors {
		factors = factors[:maxKeyFactors]
	}
	risks := p.Risks
	if len(risks) > maxRisks {
		risks = risks[:maxRisks]
	}

	return models.Prediction{
		Decision:   decision,
		Confidence: confidence,
		KeyFactors: factors,
		Risks:      risks,
		Summary:    util.TruncateRunes(p.Summary, maxSummaryLen),
	}, nil
}

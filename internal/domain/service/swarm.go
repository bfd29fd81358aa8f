package service

import (
	"context"

	"PolySwarm/internal/domain/models"
)

// ModelQuerier issues one structured-output request to one named prediction
// model. Implementations always return within their configured timeout and
// fold every failure mode into the vote's error field; callers never need
// to handle an error at this layer. Retry lives with the orchestrator.
type ModelQuerier interface {
	Query(ctx context.Context, modelID, systemPrompt, userPrompt string) models.ModelVote
}

// Synthesizer condenses the agreeing votes of a consensus into key factors,
// risks and a reasoning string. Optional: when absent or failing, the
// aggregator uses its deterministic fallback.
type Synthesizer interface {
	Synthesize(ctx context.Context, decision models.Decision, agreeing []models.ModelVote) (models.Synthesis, error)
}

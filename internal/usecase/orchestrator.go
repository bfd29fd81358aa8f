package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"PolySwarm/internal/domain/models"
	drepo "PolySwarm/internal/domain/repository"
	domsvc "PolySwarm/internal/domain/service"
	applogger "PolySwarm/pkg/logger"
	"PolySwarm/pkg/retry"
)

// SwarmOrchestrator fans one analysis request out to every configured model
// concurrently, bounded by a fixed in-flight cap. Each call is retried
// independently under the backoff policy; a call that exhausts its budget
// yields an error vote without aborting its siblings. The caller receives
// exactly one vote per requested model, and only after every model has
// either succeeded or failed terminally.
type SwarmOrchestrator struct {
	querier     domsvc.ModelQuerier
	policy      retry.Policy
	maxInFlight int
	metrics     drepo.Metrics
	logger      *applogger.Logger
}

// NewSwarmOrchestrator creates an orchestrator. maxInFlight protects the
// remote providers; it is not a correctness requirement.
func NewSwarmOrchestrator(querier domsvc.ModelQuerier, policy retry.Policy, maxInFlight int, metrics drepo.Metrics, logger *applogger.Logger) *SwarmOrchestrator {
	if maxInFlight <= 0 {
		maxInFlight = 4
	}
	return &SwarmOrchestrator{
		querier:     querier,
		policy:      policy,
		maxInFlight: maxInFlight,
		metrics:     metrics,
		logger:      logger,
	}
}

// Run queries all models and joins on the full result vector. An empty
// model list returns immediately with no votes.
func (o *SwarmOrchestrator) Run(ctx context.Context, systemPrompt, userPrompt string, modelIDs []string) []models.ModelVote {
	if len(modelIDs) == 0 {
		return nil
	}

	start := time.Now()
	votes := make([]models.ModelVote, len(modelIDs))
	sem := make(chan struct{}, o.maxInFlight)
	var wg sync.WaitGroup

	for i, id := range modelIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			votes[i] = o.queryWithRetry(ctx, id, systemPrompt, userPrompt)
			if o.metrics != nil {
				o.metrics.RecordVote(id, votes[i].OK())
			}
		}(i, id)
	}
	wg.Wait()

	if o.metrics != nil {
		o.metrics.RecordLatency("swarm_run", time.Since(start).Seconds())
	}
	return votes
}

// queryWithRetry runs a single model call under the retry policy. The
// querier never returns a Go error, so the vote's error field drives the
// retry decision; the last vote is kept either way.
func (o *SwarmOrchestrator) queryWithRetry(ctx context.Context, modelID, systemPrompt, userPrompt string) models.ModelVote {
	var last models.ModelVote
	err := o.policy.Do(ctx, func(ctx context.Context) error {
		last = o.querier.Query(ctx, modelID, systemPrompt, userPrompt)
		if !last.OK() {
			return errors.New(last.Err)
		}
		return nil
	})
	if err != nil && o.logger != nil {
		o.logger.Warn("model call failed after retries",
			applogger.String("model", modelID),
			applogger.Error(err))
	}
	return last
}

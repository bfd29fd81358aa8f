package usecase

import (
	"context"
	"fmt"
	"time"

	"PolySwarm/internal/domain/models"
	drepo "PolySwarm/internal/domain/repository"
	applogger "PolySwarm/pkg/logger"
)

// PromptBuilder renders the system and user prompts for one analysis run.
type PromptBuilder func(market models.Market, history []models.PriceSnapshot, trade *models.WhaleTrade) (system, user string)

// MarketAnalyzer glues the swarm run together: it gathers recent price
// context, fans the question out to every configured model, and aggregates
// the vote vector into one consensus.
type MarketAnalyzer struct {
	orchestrator *SwarmOrchestrator
	aggregator   *ConsensusAggregator
	prices       drepo.PriceStore
	markets      drepo.MarketStore
	build        PromptBuilder
	modelIDs     []string
	history      time.Duration
	logger       *applogger.Logger
}

func NewMarketAnalyzer(orch *SwarmOrchestrator, agg *ConsensusAggregator, prices drepo.PriceStore, markets drepo.MarketStore, build PromptBuilder, modelIDs []string, history time.Duration, logger *applogger.Logger) *MarketAnalyzer {
	if history <= 0 {
		history = 4 * time.Hour
	}
	return &MarketAnalyzer{
		orchestrator: orch,
		aggregator:   agg,
		prices:       prices,
		markets:      markets,
		build:        build,
		modelIDs:     modelIDs,
		history:      history,
		logger:       logger,
	}
}

// Analyze runs the full swarm pass for one market. trade, when present, is
// included in the prompt context. An empty model list yields an empty
// NO_TRADE consensus rather than an error.
func (a *MarketAnalyzer) Analyze(ctx context.Context, market models.Market, trade *models.WhaleTrade) (models.ConsensusResult, error) {
	now := time.Now()
	history, err := a.prices.Window(ctx, market.ID, now.Add(-a.history), now)
	if err != nil {
		return models.ConsensusResult{}, fmt.Errorf("price history for %s: %w", market.ID, err)
	}

	system, user := a.build(market, history, trade)
	votes := a.orchestrator.Run(ctx, system, user, a.modelIDs)
	res := a.aggregator.Aggregate(ctx, votes)

	if a.logger != nil {
		a.logger.Info("market analyzed",
			applogger.String("market", market.ID),
			applogger.Int("models", res.TotalModels),
			applogger.Int("successful", res.SuccessfulModels),
			applogger.String("decision", string(res.Decision)),
			applogger.Float64("consensus_pct", res.ConsensusPct))
	}
	return res, nil
}

// Provider adapts Analyze into the deduplicator's consensus callback,
// resolving market metadata from the store. A market never seen on the feed
// is analyzed with its ID alone.
func (a *MarketAnalyzer) Provider(trade models.WhaleTrade) ConsensusProvider {
	return func(ctx context.Context, marketID string) (models.ConsensusResult, error) {
		market := models.Market{ID: marketID}
		if m, err := a.markets.Get(ctx, marketID); err != nil {
			return models.ConsensusResult{}, fmt.Errorf("market lookup: %w", err)
		} else if m != nil {
			market = *m
		}
		return a.Analyze(ctx, market, &trade)
	}
}

package usecase

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"PolySwarm/internal/domain/models"
)

func vote(model string, d models.Decision, conf float64, factors, risks []string, summary string) models.ModelVote {
	return models.NewVote(model, models.Prediction{
		Decision:   d,
		Confidence: conf,
		KeyFactors: factors,
		Risks:      risks,
		Summary:    summary,
	}, time.Millisecond)
}

func TestAggregateConfidenceBeatsCount(t *testing.T) {
	// Two low-confidence YES votes against one high-confidence NO vote:
	// 2x40 < 95, so NO wins despite losing the count.
	votes := []models.ModelVote{
		vote("a", models.DecisionYes, 40, []string{"momentum"}, nil, ""),
		vote("b", models.DecisionYes, 40, []string{"volume"}, nil, ""),
		vote("c", models.DecisionNo, 95, []string{"polls"}, nil, ""),
	}

	agg := NewConsensusAggregator(nil, nil)
	res := agg.Aggregate(context.Background(), votes)

	if res.Decision != models.DecisionNo {
		t.Fatalf("Decision = %s, want NO", res.Decision)
	}
	if want := 100.0 / 3.0; res.ConsensusPct < want-0.001 || res.ConsensusPct > want+0.001 {
		t.Errorf("ConsensusPct = %f, want %f", res.ConsensusPct, want)
	}
	if res.AvgConfidence != 95 {
		t.Errorf("AvgConfidence = %f, want 95 (agreeing votes only)", res.AvgConfidence)
	}
}

func TestAggregateExactTieIsNoTrade(t *testing.T) {
	votes := []models.ModelVote{
		vote("a", models.DecisionYes, 70, []string{"f"}, nil, ""),
		vote("b", models.DecisionNo, 70, []string{"g"}, nil, ""),
	}

	agg := NewConsensusAggregator(nil, nil)
	res := agg.Aggregate(context.Background(), votes)

	if res.Decision != models.DecisionNoTrade {
		t.Fatalf("Decision = %s, want NO_TRADE on exact tie", res.Decision)
	}
}

func TestAggregateConsensusPctIsCountRatio(t *testing.T) {
	votes := []models.ModelVote{
		vote("a", models.DecisionYes, 90, []string{"f"}, nil, ""),
		vote("b", models.DecisionYes, 80, []string{"f"}, nil, ""),
		vote("c", models.DecisionYes, 70, []string{"f"}, nil, ""),
		vote("d", models.DecisionNo, 60, []string{"g"}, nil, ""),
	}

	agg := NewConsensusAggregator(nil, nil)
	res := agg.Aggregate(context.Background(), votes)

	if res.Decision != models.DecisionYes {
		t.Fatalf("Decision = %s, want YES", res.Decision)
	}
	if res.ConsensusPct != 75 {
		t.Errorf("ConsensusPct = %f, want 75", res.ConsensusPct)
	}
	if got := res.Distribution; got.Yes != 3 || got.No != 1 || got.NoTrade != 0 {
		t.Errorf("Distribution = %+v, want 3/1/0", got)
	}
	if res.ConfidenceRange.Min != 70 || res.ConfidenceRange.Max != 90 {
		t.Errorf("ConfidenceRange = %+v, want [70, 90]", res.ConfidenceRange)
	}
}

func TestAggregateNoSuccessfulVotes(t *testing.T) {
	votes := []models.ModelVote{
		models.NewFailedVote("a", "timeout", time.Second),
		models.NewFailedVote("b", "bad schema", time.Second),
	}

	agg := NewConsensusAggregator(nil, nil)
	res := agg.Aggregate(context.Background(), votes)

	if res.Decision != models.DecisionNoTrade {
		t.Fatalf("Decision = %s, want NO_TRADE", res.Decision)
	}
	if res.ConsensusPct != 0 || res.SuccessfulModels != 0 || res.TotalModels != 2 {
		t.Errorf("got pct=%f successful=%d total=%d, want 0/0/2",
			res.ConsensusPct, res.SuccessfulModels, res.TotalModels)
	}
}

func TestAggregateAllNoTrade(t *testing.T) {
	votes := []models.ModelVote{
		vote("a", models.DecisionNoTrade, 55, []string{"unclear"}, nil, ""),
		vote("b", models.DecisionNoTrade, 65, []string{"thin book"}, nil, ""),
	}

	agg := NewConsensusAggregator(nil, nil)
	res := agg.Aggregate(context.Background(), votes)

	if res.Decision != models.DecisionNoTrade {
		t.Fatalf("Decision = %s, want NO_TRADE", res.Decision)
	}
	if res.ConsensusPct != 100 {
		t.Errorf("ConsensusPct = %f, want 100 for unanimous abstention", res.ConsensusPct)
	}
	if res.AvgConfidence != 60 {
		t.Errorf("AvgConfidence = %f, want 60", res.AvgConfidence)
	}
}

func TestFallbackSynthesisDeterministic(t *testing.T) {
	votes := []models.ModelVote{
		vote("a", models.DecisionYes, 80, []string{"Polling shift", "  volume  "}, []string{"low liquidity"}, "strong move"),
		vote("b", models.DecisionYes, 75, []string{"polling shift", "whale accumulation"}, []string{"Low Liquidity", "news risk"}, "buyers stepping in"),
	}

	agg := NewConsensusAggregator(nil, nil)
	first := agg.Aggregate(context.Background(), votes)
	second := agg.Aggregate(context.Background(), votes)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("fallback synthesis not deterministic:\n%+v\n%+v", first, second)
	}
	want := []string{"Polling shift", "volume", "whale accumulation"}
	if !reflect.DeepEqual(first.KeyFactors, want) {
		t.Errorf("KeyFactors = %v, want %v", first.KeyFactors, want)
	}
	wantRisks := []string{"low liquidity", "news risk"}
	if !reflect.DeepEqual(first.Risks, wantRisks) {
		t.Errorf("Risks = %v, want %v", first.Risks, wantRisks)
	}
	if first.Reasoning != "strong move | buyers stepping in" {
		t.Errorf("Reasoning = %q", first.Reasoning)
	}
}

func TestFallbackSynthesisCaps(t *testing.T) {
	var votes []models.ModelVote
	for i := 0; i < 4; i++ {
		votes = append(votes, vote(fmt.Sprintf("m%d", i), models.DecisionYes, 70,
			[]string{fmt.Sprintf("factor-%d-a", i), fmt.Sprintf("factor-%d-b", i)},
			[]string{fmt.Sprintf("risk-%d", i)},
			"a very long summary segment that repeats itself to pad the reasoning out"))
	}

	agg := NewConsensusAggregator(nil, nil)
	res := agg.Aggregate(context.Background(), votes)

	if len(res.KeyFactors) > 5 {
		t.Errorf("len(KeyFactors) = %d, want <= 5", len(res.KeyFactors))
	}
	if len(res.Risks) > 3 {
		t.Errorf("len(Risks) = %d, want <= 3", len(res.Risks))
	}
	if n := len([]rune(res.Reasoning)); n > 500 {
		t.Errorf("len(Reasoning) = %d runes, want <= 500", n)
	}
}

type stubSynth struct {
	out models.Synthesis
	err error
}

func (s stubSynth) Synthesize(ctx context.Context, d models.Decision, agreeing []models.ModelVote) (models.Synthesis, error) {
	return s.out, s.err
}

func TestAggregateSynthesisFailureFallsBack(t *testing.T) {
	votes := []models.ModelVote{
		vote("a", models.DecisionYes, 80, []string{"factor"}, nil, "summary"),
	}

	agg := NewConsensusAggregator(stubSynth{err: fmt.Errorf("model down")}, nil)
	res := agg.Aggregate(context.Background(), votes)

	if !reflect.DeepEqual(res.KeyFactors, []string{"factor"}) {
		t.Errorf("KeyFactors = %v, want fallback output", res.KeyFactors)
	}
	if res.Reasoning != "summary" {
		t.Errorf("Reasoning = %q, want fallback summary", res.Reasoning)
	}
}

func TestAggregateSynthesisOutputCapped(t *testing.T) {
	votes := []models.ModelVote{
		vote("a", models.DecisionYes, 80, []string{"f"}, nil, ""),
	}
	syn := models.Synthesis{
		KeyFactors: []string{"1", "2", "3", "4", "5", "6", "7"},
		Risks:      []string{"a", "b", "c", "d"},
		Reasoning:  "ok",
	}

	agg := NewConsensusAggregator(stubSynth{out: syn}, nil)
	res := agg.Aggregate(context.Background(), votes)

	if len(res.KeyFactors) != 5 {
		t.Errorf("len(KeyFactors) = %d, want 5", len(res.KeyFactors))
	}
	if len(res.Risks) != 3 {
		t.Errorf("len(Risks) = %d, want 3", len(res.Risks))
	}
}

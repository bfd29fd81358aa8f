package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PolySwarm/internal/domain/models"
	"PolySwarm/pkg/retry"
)

type stubQuerier struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(modelID string, attempt int) models.ModelVote

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (q *stubQuerier) Query(ctx context.Context, modelID, system, user string) models.ModelVote {
	cur := q.inFlight.Add(1)
	for {
		max := q.maxInFlight.Load()
		if cur <= max || q.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	defer q.inFlight.Add(-1)

	q.mu.Lock()
	if q.calls == nil {
		q.calls = make(map[string]int)
	}
	q.calls[modelID]++
	attempt := q.calls[modelID]
	q.mu.Unlock()

	if q.fn != nil {
		return q.fn(modelID, attempt)
	}
	return models.NewVote(modelID, models.Prediction{Decision: models.DecisionYes, Confidence: 70}, time.Millisecond)
}

func instantPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, Multiplier: 2}
}

func TestRunOneVotePerModel(t *testing.T) {
	q := &stubQuerier{}
	orch := NewSwarmOrchestrator(q, instantPolicy(), 4, nil, nil)

	modelIDs := []string{"m1", "m2", "m3", "m4", "m5", "m6"}
	votes := orch.Run(context.Background(), "sys", "user", modelIDs)

	if len(votes) != len(modelIDs) {
		t.Fatalf("len(votes) = %d, want %d", len(votes), len(modelIDs))
	}
	for i, v := range votes {
		if v.ModelID != modelIDs[i] {
			t.Errorf("votes[%d].ModelID = %s, want %s (positional)", i, v.ModelID, modelIDs[i])
		}
		if !v.OK() {
			t.Errorf("votes[%d] failed: %s", i, v.Err)
		}
	}
}

func TestRunRespectsInFlightCap(t *testing.T) {
	q := &stubQuerier{}
	orch := NewSwarmOrchestrator(q, instantPolicy(), 3, nil, nil)

	modelIDs := make([]string, 12)
	for i := range modelIDs {
		modelIDs[i] = string(rune('a' + i))
	}
	orch.Run(context.Background(), "sys", "user", modelIDs)

	if max := q.maxInFlight.Load(); max > 3 {
		t.Fatalf("observed %d concurrent calls, cap is 3", max)
	}
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	q := &stubQuerier{
		fn: func(modelID string, attempt int) models.ModelVote {
			if attempt < 3 {
				return models.NewFailedVote(modelID, "transient", time.Millisecond)
			}
			return models.NewVote(modelID, models.Prediction{Decision: models.DecisionNo, Confidence: 60}, time.Millisecond)
		},
	}
	orch := NewSwarmOrchestrator(q, instantPolicy(), 4, nil, nil)

	votes := orch.Run(context.Background(), "sys", "user", []string{"m1"})
	if !votes[0].OK() {
		t.Fatalf("vote failed after retries: %s", votes[0].Err)
	}
	if q.calls["m1"] != 3 {
		t.Errorf("calls = %d, want 3", q.calls["m1"])
	}
}

func TestRunExhaustedRetriesYieldErrorVote(t *testing.T) {
	q := &stubQuerier{
		fn: func(modelID string, attempt int) models.ModelVote {
			return models.NewFailedVote(modelID, "provider down", time.Millisecond)
		},
	}
	orch := NewSwarmOrchestrator(q, instantPolicy(), 4, nil, nil)

	votes := orch.Run(context.Background(), "sys", "user", []string{"m1", "m2"})
	for i, v := range votes {
		if v.OK() {
			t.Errorf("votes[%d] succeeded, want error vote", i)
		}
		if v.Err != "provider down" {
			t.Errorf("votes[%d].Err = %q", i, v.Err)
		}
	}
	// 1 initial + 2 retries per model
	if q.calls["m1"] != 3 || q.calls["m2"] != 3 {
		t.Errorf("calls = %v, want 3 each", q.calls)
	}
}

func TestRunEmptyModelList(t *testing.T) {
	orch := NewSwarmOrchestrator(&stubQuerier{}, instantPolicy(), 4, nil, nil)
	if votes := orch.Run(context.Background(), "sys", "user", nil); votes != nil {
		t.Fatalf("votes = %v, want nil", votes)
	}
}

func TestRunPartialFailureDoesNotAbortSiblings(t *testing.T) {
	q := &stubQuerier{
		fn: func(modelID string, attempt int) models.ModelVote {
			if modelID == "bad" {
				return models.NewFailedVote(modelID, "schema", time.Millisecond)
			}
			return models.NewVote(modelID, models.Prediction{Decision: models.DecisionYes, Confidence: 75}, time.Millisecond)
		},
	}
	orch := NewSwarmOrchestrator(q, instantPolicy(), 4, nil, nil)

	votes := orch.Run(context.Background(), "sys", "user", []string{"good1", "bad", "good2"})
	if !votes[0].OK() || !votes[2].OK() {
		t.Errorf("sibling votes affected by failure: %+v", votes)
	}
	if votes[1].OK() {
		t.Errorf("bad model vote succeeded")
	}
}

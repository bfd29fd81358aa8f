package middleware

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type recordingProc struct {
	mu    sync.Mutex
	got   []string
	failN int
	calls int
}

func (p *recordingProc) Process(ctx context.Context, event string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failN {
		return fmt.Errorf("downstream unavailable")
	}
	p.got = append(p.got, event)
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordVote(string, bool)         {}
func (nopMetrics) RecordSignal(string, bool)       {}
func (nopMetrics) RecordTrigger(string)            {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLatency(string, float64)   {}
func (nopMetrics) RecordLastPrice(string, float64) {}

func TestPipelineForwards(t *testing.T) {
	proc := &recordingProc{}
	p := NewFeedPipeline[string](proc, func(s string) string { return s }, nopMetrics{})

	if err := p.Process(context.Background(), "mkt-1"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(proc.got) != 1 || proc.got[0] != "mkt-1" {
		t.Errorf("got = %v", proc.got)
	}
}

func TestPipelineValidatorRejects(t *testing.T) {
	proc := &recordingProc{}
	p := NewFeedPipeline[string](proc, func(s string) string { return s }, nopMetrics{},
		WithValidator[string](func(s string) error {
			if s == "" {
				return fmt.Errorf("empty")
			}
			return nil
		}))

	if err := p.Process(context.Background(), ""); err == nil {
		t.Fatalf("invalid event passed validation")
	}
	if len(proc.got) != 0 {
		t.Errorf("invalid event reached downstream")
	}
}

func TestPipelineThrottlesPerKey(t *testing.T) {
	proc := &recordingProc{}
	p := NewFeedPipeline[string](proc, func(s string) string { return s }, nopMetrics{},
		WithMaxRPS[string](1))

	// Same key twice back to back: second is throttled silently.
	_ = p.Process(context.Background(), "mkt-1")
	_ = p.Process(context.Background(), "mkt-1")
	// Different key passes.
	_ = p.Process(context.Background(), "mkt-2")

	if len(proc.got) != 2 {
		t.Fatalf("forwarded %d events, want 2 (one throttled)", len(proc.got))
	}
}

func TestPipelineBuffersOnDownstreamFailure(t *testing.T) {
	proc := &recordingProc{failN: 1}
	p := NewFeedPipeline[string](proc, func(s string) string { return s }, nopMetrics{},
		WithBufferSize[string](8))

	if err := p.Process(context.Background(), "mkt-1"); err == nil {
		t.Fatalf("downstream failure not surfaced")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		proc.mu.Lock()
		n := len(proc.got)
		proc.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("buffered event never flushed")
}

package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	domrepo "PolySwarm/internal/domain/repository"
)

// Proc is the downstream stage the pipeline feeds, typically a Kafka
// publisher.
type Proc[T any] interface {
	Process(ctx context.Context, event T) error
}

// ProcFunc adapts a function to Proc.
type ProcFunc[T any] func(ctx context.Context, event T) error

func (f ProcFunc[T]) Process(ctx context.Context, event T) error { return f(ctx, event) }

// FeedPipeline sits between the market-data stream and Kafka. It
// validates, throttles per market, and buffers events while downstream is
// unavailable. Throttled and overflowed events are dropped; the feed must
// never stall on a slow broker.
type FeedPipeline[T any] struct {
	proc     Proc[T]
	key      func(T) string
	validate func(T) error
	metrics  domrepo.Metrics
	maxRPS   int
	bufCh    chan T
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-market last accepted time
}

type PipelineOption[T any] func(*FeedPipeline[T])

// WithMaxRPS caps accepted events per second per market.
func WithMaxRPS[T any](n int) PipelineOption[T] {
	return func(p *FeedPipeline[T]) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the holding buffer used when downstream fails.
func WithBufferSize[T any](n int) PipelineOption[T] {
	return func(p *FeedPipeline[T]) {
		if n > 0 {
			p.bufCh = make(chan T, n)
		}
	}
}

// WithValidator sets the per-event validation hook.
func WithValidator[T any](fn func(T) error) PipelineOption[T] {
	return func(p *FeedPipeline[T]) { p.validate = fn }
}

// NewFeedPipeline creates a pipeline. key extracts the market ID used for
// throttling.
func NewFeedPipeline[T any](proc Proc[T], key func(T) string, metrics domrepo.Metrics, opts ...PipelineOption[T]) *FeedPipeline[T] {
	p := &FeedPipeline[T]{
		proc:     proc,
		key:      key,
		metrics:  metrics,
		maxRPS:   20,
		bufCh:    make(chan T, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches background flushing of buffered events.
func (p *FeedPipeline[T]) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case event := <-p.bufCh:
				if err := p.proc.Process(ctx, event); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- event:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *FeedPipeline[T]) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards one event, buffering it when
// downstream errors.
func (p *FeedPipeline[T]) Process(ctx context.Context, event T) error {
	start := time.Now()
	if p.validate != nil {
		if err := p.validate(event); err != nil {
			p.metrics.RecordError("pipeline_validate")
			return err
		}
	}
	if !p.allow(p.key(event), start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, event); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- event:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *FeedPipeline[T]) allow(market string, now time.Time) bool {
	if p.maxRPS <= 0 || market == "" {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[market]
	if !last.IsZero() && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[market] = now
	return true
}

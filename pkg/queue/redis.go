package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"PolySwarm/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const retryPollInterval = 5 * time.Second

// RedisQueue is a Redis-list backed job queue. Failed messages are parked in
// a sorted set keyed by their retry deadline and moved back onto the list by
// a background pass; messages out of retries land on a dead letter list.
type RedisQueue struct {
	logger    *logger.Logger
	cfg       QueueConfig
	client    *redis.Client
	jobs      map[string]Job
	keyPrefix string

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets the Redis key namespace.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix + ":queue"
	}
}

// NewRedisConsumer builds a queue that both publishes and consumes. Each job
// claims one message type; a duplicate type keeps the first registration.
func NewRedisConsumer(lgr *logger.Logger, cfg *QueueConfig, client *redis.Client, jobs []Job, opts ...RedisQueueOption) *RedisQueue {
	if cfg == nil {
		cfg = &QueueConfig{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}

	r := &RedisQueue{
		logger:    lgr,
		cfg:       *cfg,
		client:    client,
		jobs:      make(map[string]Job),
		keyPrefix: "polyswarm:queue",
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, job := range jobs {
		if _, dup := r.jobs[job.Type()]; dup {
			lgr.Warn("job type already registered", logger.String("job", job.Name()))
			continue
		}
		r.jobs[job.Type()] = job
	}
	return r
}

// Start verifies the Redis connection and launches the workers and the retry
// pass.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("queue already running")
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	r.cancel = stop
	r.running = true

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	r.wg.Add(1)
	go r.retryPass(ctx)

	r.logger.Info("redis queue started",
		logger.Int("workers", r.cfg.Workers),
		logger.Int("jobs", len(r.jobs)))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs, bounded by ctx.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	}
}

// PublishMessage enqueues one message. Implements QueueService.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	if _, known := r.jobs[msgType]; !known {
		return fmt.Errorf("no job registered for type %s", msgType)
	}
	return r.push(ctx, Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

func (r *RedisQueue) push(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := r.client.LPush(ctx, r.queueKey(), raw).Err(); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

func (r *RedisQueue) worker(ctx context.Context) {
	defer r.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}
		res, err := r.client.BRPop(ctx, time.Second, r.queueKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			r.logger.Error("queue pop", logger.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		if len(res) == 2 {
			r.dispatch(ctx, []byte(res[1]))
		}
	}
}

func (r *RedisQueue) dispatch(ctx context.Context, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.logger.Error("decode queued message", logger.Error(err))
		return
	}
	job, known := r.jobs[msg.Type]
	if !known {
		r.logger.Error("no job for queued type", logger.String("type", msg.Type), logger.String("id", msg.ID))
		return
	}

	// A payload that round-tripped through JSON comes back as a map; hand
	// jobs the raw form so ParsePayload can decode the concrete type.
	if m, ok := msg.Payload.(map[string]interface{}); ok {
		if b, err := json.Marshal(m); err == nil {
			msg.Payload = json.RawMessage(b)
		}
	}

	if err := job.Handle(ctx, msg.Payload); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		r.fail(msg, job, err)
	}
}

func (r *RedisQueue) fail(msg Message, job Job, cause error) {
	r.logger.Error("job failed",
		logger.String("job", job.Name()),
		logger.String("id", msg.ID),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(cause))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if msg.Attempts >= r.cfg.RetryLimit {
		raw, err := json.Marshal(msg)
		if err == nil {
			err = r.client.LPush(ctx, r.deadLetterKey(), raw).Err()
		}
		if err != nil {
			r.logger.Error("dead letter", logger.String("id", msg.ID), logger.Error(err))
		}
		return
	}

	msg.Attempts++
	raw, err := json.Marshal(msg)
	if err == nil {
		err = r.client.ZAdd(ctx, r.retryKey(), redis.Z{
			Score:  float64(time.Now().Add(r.cfg.RetryDelay).Unix()),
			Member: raw,
		}).Err()
	}
	if err != nil {
		r.logger.Error("schedule retry", logger.String("id", msg.ID), logger.Error(err))
	}
}

// retryPass periodically moves due retries back onto the main list.
func (r *RedisQueue) retryPass(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(retryPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		due, err := r.client.ZRangeByScore(ctx, r.retryKey(), &redis.ZRangeBy{
			Min: "0",
			Max: strconv.FormatInt(time.Now().Unix(), 10),
		}).Result()
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				r.logger.Error("fetch due retries", logger.Error(err))
			}
			continue
		}

		for _, raw := range due {
			pipe := r.client.TxPipeline()
			pipe.ZRem(ctx, r.retryKey(), raw)
			pipe.LPush(ctx, r.queueKey(), raw)
			if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("requeue retry", logger.Error(err))
			}
		}
	}
}

func (r *RedisQueue) queueKey() string      { return r.keyPrefix + ":messages" }
func (r *RedisQueue) retryKey() string      { return r.keyPrefix + ":retry" }
func (r *RedisQueue) deadLetterKey() string { return r.keyPrefix + ":dlq" }

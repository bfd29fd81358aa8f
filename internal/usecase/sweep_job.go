package usecase

import (
	"context"
	"fmt"
	"time"

	applogger "PolySwarm/pkg/logger"
	"PolySwarm/pkg/queue"
)

// SweepType is the queue message type that requests a trigger expiry pass.
const SweepType = "trigger.sweep"

// SweepPayload carries the reference instant of one sweep request.
type SweepPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// TriggerSweepJob expires overdue triggers off the queue. Expiry is also
// applied lazily on reads, so the sweep only keeps the active set tidy for
// listings and metrics.
type TriggerSweepJob struct {
	detector *TriggerDetector
	logger   *applogger.Logger
}

func NewTriggerSweepJob(detector *TriggerDetector, logger *applogger.Logger) *TriggerSweepJob {
	return &TriggerSweepJob{detector: detector, logger: logger}
}

func (j *TriggerSweepJob) Name() string { return "trigger-sweep" }
func (j *TriggerSweepJob) Type() string { return SweepType }

func (j *TriggerSweepJob) Handle(ctx context.Context, payload interface{}) error {
	if _, err := queue.ParsePayload[SweepPayload](payload); err != nil {
		return fmt.Errorf("parse sweep payload: %w", err)
	}
	n, err := j.detector.Sweep(ctx)
	if err != nil {
		return err
	}
	if j.logger != nil && n > 0 {
		j.logger.Debug("sweep pass complete", applogger.Int("expired", n))
	}
	return nil
}

// SweepScheduler enqueues a sweep request on a fixed interval until the
// context is cancelled.
type SweepScheduler struct {
	queue    queue.QueueService
	interval time.Duration
	logger   *applogger.Logger
}

func NewSweepScheduler(q queue.QueueService, interval time.Duration, logger *applogger.Logger) *SweepScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweepScheduler{queue: q, interval: interval, logger: logger}
}

// Run blocks until ctx is done.
func (s *SweepScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.queue.PublishMessage(ctx, SweepType, SweepPayload{RequestedAt: time.Now()}); err != nil {
				if s.logger != nil {
					s.logger.Warn("enqueue sweep failed", applogger.Error(err))
				}
			}
		}
	}
}

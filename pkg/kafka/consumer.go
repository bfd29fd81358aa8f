package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

// MessageHandler consumes payloads from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerOption configures the consumer.
type ConsumerOption func(*consumerConfig)

type consumerConfig struct {
	brokers    []string
	groupID    string
	workers    int
	queueCap   int
	retryMax   int
	backoffMin time.Duration
	backoffMax time.Duration
	dlqTopic   string
	minBytes   int
	maxBytes   int
}

// WithConsumerBrokers sets the broker list.
func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *consumerConfig) { c.brokers = brokers }
}

// WithConsumerGroupID sets the consumer group.
func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *consumerConfig) { c.groupID = groupID }
}

// WithConsumerWorkers sets how many group readers run per topic.
func WithConsumerWorkers(n int) ConsumerOption {
	return func(c *consumerConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithConsumerBufferSize sets each reader's prefetch queue capacity.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *consumerConfig) {
		if n > 0 {
			c.queueCap = n
		}
	}
}

// WithConsumerRetry sets the handler retry budget and backoff range.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *consumerConfig) {
		c.retryMax = max
		c.backoffMin = backoffMin
		c.backoffMax = backoffMax
	}
}

// WithConsumerDLQ sets the dead letter topic. Empty disables dead lettering,
// in which case failed messages are still committed to avoid poison loops.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *consumerConfig) { c.dlqTopic = topic }
}

// WithConsumerFetch sets fetch min and max bytes.
func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *consumerConfig) {
		c.minBytes = minBytes
		c.maxBytes = maxBytes
	}
}

// Consumer runs a pool of consumer group readers, one set per registered
// topic. Each reader fetches, handles with retry, dead letters on exhaustion
// and commits, so per-partition ordering is preserved without extra locking.
type Consumer struct {
	cfg      consumerConfig
	handlers map[string]MessageHandler
	hook     ConsumerHook

	readers  []*kafka.Reader
	dlq      *kafka.Writer
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewConsumer builds a consumer. Handlers are registered before Start.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := consumerConfig{
		groupID:    "default",
		workers:    1,
		queueCap:   100,
		retryMax:   3,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
		minBytes:   10e3,
		maxBytes:   10e6,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer: brokers are required")
	}

	c := &Consumer{
		cfg:      cfg,
		handlers: make(map[string]MessageHandler),
		hook:     NoopHook{},
	}
	if cfg.dlqTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.brokers...), Balancer: &kafka.LeastBytes{}}
	}
	registerConsumerMetrics()
	return c, nil
}

// RegisterHandler binds a handler to its topic. The last registration for a
// topic wins.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, dup := c.handlers[h.Topic()]; dup {
		log.Printf("kafka consumer: replacing handler for topic %s", h.Topic())
	}
	c.handlers[h.Topic()] = h
}

// WithConsumerHook installs a lifecycle hook. Nil is ignored.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start launches the reader pool for every registered topic.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("kafka consumer: no handlers registered")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	for topic, handler := range c.handlers {
		for i := 0; i < c.cfg.workers; i++ {
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers:       c.cfg.brokers,
				Topic:         topic,
				GroupID:       c.cfg.groupID,
				MinBytes:      c.cfg.minBytes,
				MaxBytes:      c.cfg.maxBytes,
				QueueCapacity: c.cfg.queueCap,
				StartOffset:   kafka.FirstOffset,
			})
			c.readers = append(c.readers, reader)
			c.wg.Add(1)
			go c.run(ctx, reader, topic, handler)
		}
		log.Printf("kafka consumer: topic=%s readers=%d group=%s", topic, c.cfg.workers, c.cfg.groupID)
	}
	return nil
}

// Stop drains the readers and waits for in-flight handling to finish, bounded
// by ctx.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		for _, r := range c.readers {
			if err := r.Close(); err != nil {
				log.Printf("kafka consumer: close reader: %v", err)
			}
		}

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("kafka consumer: stop: %w", ctx.Err())
		}

		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				log.Printf("kafka consumer: close dlq writer: %v", err)
			}
		}
	})
	return stopErr
}

func (c *Consumer) run(ctx context.Context, reader *kafka.Reader, topic string, handler MessageHandler) {
	defer c.wg.Done()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			log.Printf("kafka consumer: fetch topic=%s: %v", topic, err)
			continue
		}
		c.process(ctx, reader, topic, handler, msg)
	}
}

// process runs the handler with retry and commits the offset on success or
// after dead lettering. The offset stays uncommitted only when neither
// succeeded, so the message is redelivered after a restart.
func (c *Consumer) process(ctx context.Context, reader *kafka.Reader, topic string, handler MessageHandler, msg kafka.Message) {
	start := time.Now()

	hctx, hmsg, data, err := c.hook.BeforeHandle(ctx, topic, msg, msg.Value)
	if err == nil {
		for attempt := 0; ; attempt++ {
			err = c.handle(hctx, handler, data)
			c.hook.AfterHandle(hctx, topic, hmsg, data, err)
			if err == nil || attempt >= c.cfg.retryMax {
				break
			}
			c.hook.OnError(hctx, topic, hmsg, data, err)
			select {
			case <-time.After(jitterBackoff(c.cfg.backoffMin, c.cfg.backoffMax, attempt)):
			case <-ctx.Done():
				return
			}
		}
	}

	result := "ok"
	if err != nil {
		result = "error"
		c.hook.OnError(hctx, topic, hmsg, data, err)
		log.Printf("kafka consumer: handle topic=%s partition=%d offset=%d: %v", topic, msg.Partition, msg.Offset, err)
		if !c.deadLetter(topic, msg) {
			return
		}
	}
	consumerHandled.WithLabelValues(topic, result).Inc()
	consumerLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())

	commitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := reader.CommitMessages(commitCtx, msg); err != nil {
		log.Printf("kafka consumer: commit topic=%s offset=%d: %v", topic, msg.Offset, err)
	}
}

// handle isolates handler panics so one bad message cannot kill the reader.
func (c *Consumer) handle(ctx context.Context, handler MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, data)
}

// deadLetter reports whether the failed message may be committed. Without a
// DLQ configured it returns true so poison messages do not block the
// partition.
func (c *Consumer) deadLetter(topic string, msg kafka.Message) bool {
	if c.dlq == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Topic:   c.cfg.dlqTopic,
		Key:     msg.Key,
		Value:   msg.Value,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(topic)}},
	})
	if err != nil {
		log.Printf("kafka consumer: dead letter topic=%s: %v", c.cfg.dlqTopic, err)
		return false
	}
	return true
}

func jitterBackoff(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := min << uint(attempt)
	if d > max || d <= 0 {
		d = max
	}
	return d - time.Duration(rand.Int63n(int64(d)/2+1))
}

var (
	consumerHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyswarm_kafka_consumer_messages_total",
			Help: "Handled messages by topic and result",
		},
		[]string{"topic", "result"},
	)
	consumerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polyswarm_kafka_consumer_handle_seconds",
			Help:    "Time spent handling one message",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
	consumerMetricsOnce sync.Once
)

func registerConsumerMetrics() {
	consumerMetricsOnce.Do(func() {
		prometheus.MustRegister(consumerHandled, consumerLatency)
	})
}

package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook observes message handling. BeforeHandle may replace the
// context, message or payload; a non-nil error skips the handler and sends
// the message to error processing.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, msg kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterHandle(ctx context.Context, topic string, msg kafka.Message, data []byte, err error)
	OnError(ctx context.Context, topic string, msg kafka.Message, data []byte, err error)
}

// NoopHook is the default hook.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, topic string, msg kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return ctx, msg, data, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {}

func (NoopHook) OnError(context.Context, string, kafka.Message, []byte, error) {}

package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"eventanalyzer/pkg/logger"
	"eventanalyzer/pkg/requestid"
)

// Consumer follows one topic
type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Brokers []string
	GroupID string // empty reads without a consumer group
	Topic   string
	// FromLatest starts at the tail when no offset is committed
	FromLatest bool
	Logger     *logger.Logger
}

// NewConsumer creates a consumer; the connection is opened on the first read
func NewConsumer(cfg ConsumerConfig) *Consumer {
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	start := kafka.FirstOffset
	if cfg.FromLatest {
		start = kafka.LastOffset
	}

	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			Topic:       cfg.Topic,
			MinBytes:    1,
			MaxBytes:    1 << 20,
			StartOffset: start,
		}),
		log: log.With("component", "kafka_consumer", "topic", cfg.Topic),
	}
}

// MessageHandler processes one message. ctx carries the producer's request id when the message had one.
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// Consume calls handler for every message until ctx is cancelled, then returns ctx.Err().
// Read and handler errors are logged and consumption continues.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warnw("Failed to read message", "error", err)
			continue
		}

		msgCtx := ctx
		for _, h := range msg.Headers {
			if h.Key == HeaderRequestID {
				msgCtx = requestid.With(ctx, string(h.Value))
			}
		}
		if err := handler(msgCtx, msg); err != nil {
			c.log.WithContext(msgCtx).Warnw("Failed to handle message",
				"key", string(msg.Key), "offset", msg.Offset, "error", err)
		}
	}
}

// ConsumeJSON decodes every message into T before calling fn.
// Messages that are not valid JSON for T are logged and skipped.
func ConsumeJSON[T any](ctx context.Context, c *Consumer, fn func(ctx context.Context, v T) error) error {
	return c.Consume(ctx, func(ctx context.Context, msg kafka.Message) error {
		var v T
		if err := json.Unmarshal(msg.Value, &v); err != nil {
			return err
		}
		return fn(ctx, v)
	})
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Package events publishes model lifecycle and prediction events.
package events

import (
	"context"
	"time"

	"eventanalyzer/internal/adapters/kafka"
	"eventanalyzer/pkg/logger"
)

// Lifecycle event types
const (
	TypeModelInitialized   = "model.initialized"
	TypeModelTrained       = "model.trained"
	TypeModelRandomTrained = "model.random_trained"
)

// ModelEvent describes one model record write
type ModelEvent struct {
	Type        string    `json:"type"`
	RequestID   string    `json:"request_id,omitempty"`
	ModelID     string    `json:"model_id"`
	Algorithm   string    `json:"algorithm"`
	Tag         string    `json:"tag"`
	Event       string    `json:"event"`
	Status      string    `json:"status"`
	SourceTag   string    `json:"source_tag,omitempty"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// PredictionEvent describes one classification outcome
type PredictionEvent struct {
	RequestID     string             `json:"request_id,omitempty"`
	Algorithm     string             `json:"algorithm"`
	Tag           string             `json:"tag"`
	Event         string             `json:"event"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	Skipped       []string           `json:"skipped,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
}

// Sink publishes a keyed message to a topic
type Sink interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

var _ Sink = (*kafka.Producer)(nil)

// Publisher publishes events to Kafka
type Publisher struct {
	sink Sink
	log  *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(sink Sink, log *logger.Logger) *Publisher {
	return &Publisher{
		sink: sink,
		log:  log.With("component", "event_publisher"),
	}
}

// PublishModel publishes a lifecycle event keyed by tag/event
func (p *Publisher) PublishModel(ctx context.Context, e ModelEvent) error {
	return p.publish(ctx, kafka.TopicModelLifecycle, e.Tag+"/"+e.Event, e)
}

// PublishPrediction publishes a classification keyed by tag
func (p *Publisher) PublishPrediction(ctx context.Context, e PredictionEvent) error {
	return p.publish(ctx, kafka.TopicPredictions, e.Tag, e)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event interface{}) error {
	if err := p.sink.Publish(ctx, topic, key, event); err != nil {
		p.log.Warnw("failed to publish event", "topic", topic, "key", key, "error", err)
		return err
	}
	return nil
}

package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"

	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
	"eventanalyzer/pkg/requestid"
)

// HeaderRequestID carries the X-Request-Id of the operation that produced a message
const HeaderRequestID = "request_id"

// Producer publishes JSON events, lazily opening one writer per topic.
// Messages with the same key land on the same partition, so the events of one
// model key stay ordered.
type Producer struct {
	mu       sync.Mutex
	writers  map[string]*kafka.Writer
	brokers  []string
	clientID string
	log      *logger.Logger
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Brokers  []string
	ClientID string
	Logger   *logger.Logger
}

// NewProducer creates a producer; no connection is made until the first Publish
func NewProducer(cfg ProducerConfig) *Producer {
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}
	return &Producer{
		writers:  make(map[string]*kafka.Writer),
		brokers:  cfg.Brokers,
		clientID: cfg.ClientID,
		log:      log.With("component", "kafka_producer"),
	}
}

func (p *Producer) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Transport:              &kafka.Transport{ClientID: p.clientID},
	}
	p.writers[topic] = w
	return w
}

// Publish encodes event as JSON and writes it under key
func (p *Producer) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "encode %s message", topic)
	}

	msg := kafka.Message{Key: []byte(key), Value: data}
	if id := requestid.From(ctx); id != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: HeaderRequestID, Value: []byte(id)})
	}

	if err := p.writer(topic).WriteMessages(ctx, msg); err != nil {
		return errors.Join(errors.ErrUnavailable, errors.Wrapf(err, "publish to %s", topic))
	}
	p.log.Debugw("Published", "topic", topic, "key", key)
	return nil
}

// Close flushes and closes every writer
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs errors.MultiError
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs.Add(errors.Wrapf(err, "close writer for %s", topic))
		}
	}
	if errs.HasErrors() {
		return &errs
	}
	return nil
}

package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"eventanalyzer/internal/adapters/kafka"
	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
)

// MockSink is a mock implementation of Sink
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	return m.Called(ctx, topic, key, event).Error(0)
}

func TestPublisher_PublishModel(t *testing.T) {
	sink := new(MockSink)
	p := NewPublisher(sink, logger.Nop())
	ctx := context.Background()

	e := ModelEvent{
		Type:      TypeModelTrained,
		ModelID:   "id-1",
		Algorithm: "GMMHMM",
		Tag:       "daily",
		Event:     "go_home",
		Status:    "trained",
		Timestamp: time.Now(),
	}
	sink.On("Publish", ctx, kafka.TopicModelLifecycle, "daily/go_home", e).Return(nil).Once()

	require.NoError(t, p.PublishModel(ctx, e))
	sink.AssertExpectations(t)
}

func TestPublisher_PublishPredictionError(t *testing.T) {
	sink := new(MockSink)
	p := NewPublisher(sink, logger.Nop())
	ctx := context.Background()

	down := errors.Join(errors.ErrUnavailable, errors.New("broker down"))
	sink.On("Publish", ctx, kafka.TopicPredictions, "daily", mock.Anything).Return(down)

	err := p.PublishPrediction(ctx, PredictionEvent{Tag: "daily", Event: "go_home"})
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}

package kafka

// Topic definitions for Kafka event streaming
const (
	// TopicModelLifecycle carries model record writes (init, train, random train)
	TopicModelLifecycle = "models.lifecycle"
	// TopicPredictions carries classification outcomes
	TopicPredictions = "models.predictions"
)

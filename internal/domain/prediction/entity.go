package prediction

import "time"

// Log is one classification outcome kept for analytics
type Log struct {
	RequestID      string             `ch:"request_id" json:"request_id"`
	Algorithm      string             `ch:"algorithm" json:"algorithm"`
	Tag            string             `ch:"tag" json:"tag"`
	SequenceLength uint32             `ch:"sequence_length" json:"sequence_length"`
	TopEvent       string             `ch:"top_event" json:"top_event"`
	TopProbability float64            `ch:"top_probability" json:"top_probability"`
	Probabilities  map[string]float64 `ch:"probabilities" json:"probabilities"`
	Skipped        uint32             `ch:"skipped" json:"skipped"`
	LatencyMs      float64            `ch:"latency_ms" json:"latency_ms"`
	CreatedAt      time.Time          `ch:"created_at" json:"created_at"`
}

// EventCount aggregates how often an event won under a tag
type EventCount struct {
	TopEvent string  `ch:"top_event" json:"top_event"`
	Count    uint64  `ch:"cnt" json:"count"`
	AvgProb  float64 `ch:"avg_prob" json:"avg_probability"`
}

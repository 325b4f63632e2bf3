package prediction

import (
	"context"
	"time"
)

// Repository stores prediction logs
type Repository interface {
	Store(ctx context.Context, l *Log) error
	TopEvents(ctx context.Context, tag string, since time.Time) ([]EventCount, error)
}

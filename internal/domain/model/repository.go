package model

import "context"

// Repository defines persistence operations for model records.
// Concurrent writes to the same key are last-writer-wins; callers that need
// stronger guarantees coordinate outside the repository.
type Repository interface {
	// SetModel creates or overwrites the record at r.Key() and returns its ID.
	// An overwrite keeps the existing ID and CreatedAt.
	SetModel(ctx context.Context, r *Record) (string, error)
	// GetModel returns the record at key or errors.ErrNotFound.
	GetModel(ctx context.Context, key Key) (*Record, error)
	// GetModelByTag returns every record of algorithm under tag, ordered by event; empty when none.
	GetModelByTag(ctx context.Context, algorithm Algorithm, tag string) ([]*Record, error)
	// ListTags summarizes the tags holding records of algorithm, newest first.
	ListTags(ctx context.Context, algorithm Algorithm) ([]TagSummary, error)
}

// Package noop provides the tracker used when error tracking is off.
package noop

import (
	"context"

	"eventanalyzer/pkg/errors"
)

var _ errors.Tracker = Tracker{}

// Tracker discards everything
type Tracker struct{}

// New returns a discarding tracker
func New() Tracker { return Tracker{} }

func (Tracker) CaptureError(context.Context, error, map[string]string) error { return nil }

func (Tracker) Flush(context.Context) error { return nil }

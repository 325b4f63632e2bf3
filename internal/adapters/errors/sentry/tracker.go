// Package sentry reports unexpected analyzer failures to Sentry.
package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/requestid"
)

var _ errors.Tracker = (*Tracker)(nil)

const defaultFlushTimeout = 2 * time.Second

// Tracker sends errors outside the domain taxonomy to Sentry. Events are grouped
// by machine code so one failing dependency does not fan out into many issues.
type Tracker struct {
	hub *sentry.Hub
}

// New initializes the global Sentry client and returns a tracker on its hub
func New(dsn string, environment string, release string) (*Tracker, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init sentry")
	}
	return &Tracker{hub: sentry.CurrentHub()}, nil
}

// CaptureError implements errors.Tracker. Expected errors are dropped.
func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	if !errors.ShouldTrack(err) {
		return nil
	}

	code := errors.Code(err)
	t.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		scope.SetTag("error_code", code)
		if id := requestid.From(ctx); id != "" {
			scope.SetTag("request_id", id)
		}
		scope.SetFingerprint([]string{"{{ default }}", code})
		t.hub.CaptureException(err)
	})
	return nil
}

// Flush waits for buffered events until ctx's deadline, or two seconds without one
func (t *Tracker) Flush(ctx context.Context) error {
	timeout := defaultFlushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !t.hub.Flush(timeout) {
		return errors.Wrap(errors.ErrUnavailable, "sentry flush timed out")
	}
	return nil
}

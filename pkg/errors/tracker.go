package errors

import "context"

// Tracker reports unexpected failures to an external service such as Sentry
type Tracker interface {
	CaptureError(ctx context.Context, err error, tags map[string]string) error
	Flush(ctx context.Context) error
}

// ShouldTrack reports whether err is worth a tracker event.
// Errors from the domain taxonomy are answers to the caller, not incidents.
func ShouldTrack(err error) bool {
	return err != nil && !IsExpected(err)
}

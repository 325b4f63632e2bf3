package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"eventanalyzer/internal/metrics"
	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
	"eventanalyzer/pkg/requestid"
)

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestID honours the caller's X-Request-Id, generating one when absent, and echoes it
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(requestid.Header); id != "" {
			ctx = requestid.With(ctx, id)
		}
		ctx, id := requestid.Ensure(ctx)
		w.Header().Set(requestid.Header, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Instrument logs every request and records it in m (which may be nil)
func Instrument(route string, log *logger.Logger, m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		log.WithContext(r.Context()).Debugw("HTTP request",
			"method", r.Method,
			"route", route,
			"remote_addr", r.RemoteAddr,
		)

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		if m != nil {
			m.RecordHTTPRequest(route, strconv.Itoa(wrapped.statusCode), duration)
		}
		log.WithContext(r.Context()).Infow("HTTP response",
			"method", r.Method,
			"route", route,
			"status", wrapped.statusCode,
			"duration_ms", duration.Milliseconds(),
		)
	})
}

// Recover turns a panic in next into an internal error response
func Recover(route string, log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				err := errors.Wrap(errors.ErrInternal, fmt.Sprintf("panic: %v", v))
				writeError(w, r, log, route, err)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// LimitBody caps request bodies at n bytes
func LimitBody(n int64, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, n)
		next.ServeHTTP(w, r)
	})
}

// Package ratelimit throttles expensive API routes.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"eventanalyzer/pkg/errors"
)

// Limiter is a named token bucket
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewLimiter creates a limiter admitting requestsPerMinute, with a burst of 10% of it
func NewLimiter(name string, requestsPerMinute int) *Limiter {
	rps := float64(requestsPerMinute) / 60.0

	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
	}
}

// Allow checks if a request is allowed without blocking
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// MultiLimiter holds limiters by key (route, global, ...)
type MultiLimiter struct {
	limiters map[string]*Limiter
	mu       sync.RWMutex
}

// NewMultiLimiter creates a new multi-limiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*Limiter),
	}
}

// AddLimiter adds a rate limiter for a specific key
func (m *MultiLimiter) AddLimiter(key string, limiter *Limiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[key] = limiter
}

// Allow admits a request only if every limiter among keys has a token for it now.
// Tokens are taken all or nothing: a refusal by one limiter leaves the others untouched.
// Keys without a limiter are unrestricted.
func (m *MultiLimiter) Allow(keys ...string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	taken := make([]*rate.Reservation, 0, len(keys))
	for _, key := range keys {
		limiter, ok := m.limiters[key]
		if !ok {
			continue
		}
		r := limiter.limiter.ReserveN(now, 1)
		if !r.OK() || r.DelayFrom(now) > 0 {
			// newest first, so each cancellation restores its full token
			r.CancelAt(now)
			for i := len(taken) - 1; i >= 0; i-- {
				taken[i].CancelAt(now)
			}
			return errors.Wrapf(errors.ErrRateLimitExceeded, "rate limiter %s", limiter.name)
		}
		taken = append(taken, r)
	}
	return nil
}

// TrainingLimiters throttles the training routes: "train" is shared by every training
// route and each batch route is also held to a tenth of that rate.
func TrainingLimiters(requestsPerMinute int) *MultiLimiter {
	m := NewMultiLimiter()
	if requestsPerMinute <= 0 {
		return m
	}
	m.AddLimiter("train", NewLimiter("train", requestsPerMinute))

	batch := requestsPerMinute / 10
	if batch < 1 {
		batch = 1
	}
	m.AddLimiter("batch", NewLimiter("batch", batch))
	return m
}

package ratelimit

import "time"

const (
	responseTimeWindow  = 10
	responseTimeSamples = 5
	slowResponse        = 5 * time.Second
	fastResponse        = 2 * time.Second
)

// AdaptiveLimiter extends Limiter with response-time feedback: sustained
// slow responses widen the interval even before the remote starts failing
// requests, and consistently fast responses tighten it.
type AdaptiveLimiter struct {
	*Limiter
	responseTimes []time.Duration
}

// NewAdaptive creates an AdaptiveLimiter.
func NewAdaptive(cfg Config) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		Limiter:       New(cfg),
		responseTimes: make([]time.Duration, 0, responseTimeWindow),
	}
}

// RecordResponseTime feeds one observed response duration into the
// controller. Adjustment starts once enough samples exist.
func (a *AdaptiveLimiter) RecordResponseTime(rt time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.responseTimes) >= responseTimeWindow {
		copy(a.responseTimes, a.responseTimes[1:])
		a.responseTimes = a.responseTimes[:len(a.responseTimes)-1]
	}
	a.responseTimes = append(a.responseTimes, rt)

	if len(a.responseTimes) < responseTimeSamples {
		return
	}

	var total time.Duration
	for _, t := range a.responseTimes {
		total += t
	}
	avg := total / time.Duration(len(a.responseTimes))

	switch {
	case avg > slowResponse:
		a.interval = minDuration(a.cfg.MaxInterval, scale(a.interval, 1.1))
	case avg < fastResponse && a.consecutiveErrors == 0:
		a.interval = maxDuration(a.cfg.MinInterval, scale(a.interval, 0.9))
	}
}

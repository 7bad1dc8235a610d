package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config holds rate limiter configuration. RequestsPerMinute bounds the
// sliding window; MinInterval and MaxInterval bound the adaptive controller.
type Config struct {
	RequestsPerMinute int
	MinInterval       time.Duration
	MaxInterval       time.Duration
	Adaptive          bool
}

// BaseInterval returns the steady-state gap implied by the per-minute quota.
func (c Config) BaseInterval() time.Duration {
	if c.RequestsPerMinute <= 0 {
		return c.MinInterval
	}
	return time.Minute / time.Duration(c.RequestsPerMinute)
}

// Stats is a snapshot of the limiter's counters.
type Stats struct {
	TotalRequests     int
	TotalWait         time.Duration
	AvgWait           time.Duration
	CurrentInterval   time.Duration
	ConsecutiveErrors int
}

const windowMargin = 100 * time.Millisecond

// Limiter combines a minimum-interval gate, a sliding per-minute window and
// a multiplicative adaptive controller. All fetch tasks of a session share
// one Limiter; Wait holds the lock across its whole check-sleep-record
// sequence so two tasks can never pass the gate in the same instant.
type Limiter struct {
	mu sync.Mutex

	cfg      Config
	window   []time.Time
	last     time.Time
	interval time.Duration

	consecutiveErrors int
	totalRequests     int
	totalWait         time.Duration
}

// New creates a Limiter starting at the quota-implied base interval.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:      cfg,
		window:   make([]time.Time, 0, cfg.RequestsPerMinute),
		interval: cfg.BaseInterval(),
	}
}

// Wait blocks until the next request may be sent, then records it. It
// returns the time actually spent waiting. A cancelled context aborts the
// wait without recording a request.
func (l *Limiter) Wait(ctx context.Context) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	required := l.waitNeeded(time.Now())

	if required > 0 {
		timer := time.NewTimer(required)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		l.totalWait += required
	}

	l.record(time.Now())
	return required, nil
}

// waitNeeded computes the gap to the next permitted request. Caller holds
// the lock.
func (l *Limiter) waitNeeded(now time.Time) time.Duration {
	var required time.Duration

	if !l.last.IsZero() {
		if elapsed := now.Sub(l.last); elapsed < l.interval {
			required = l.interval - elapsed
		}
	}

	if l.cfg.RequestsPerMinute > 0 && len(l.window) >= l.cfg.RequestsPerMinute {
		windowElapsed := now.Sub(l.window[0])
		if windowElapsed < time.Minute {
			if gap := time.Minute - windowElapsed + windowMargin; gap > required {
				required = gap
			}
		}
	}

	return required
}

// record appends a request timestamp, evicting the oldest entry once the
// window is full. Caller holds the lock.
func (l *Limiter) record(now time.Time) {
	if l.cfg.RequestsPerMinute > 0 && len(l.window) >= l.cfg.RequestsPerMinute {
		copy(l.window, l.window[1:])
		l.window = l.window[:len(l.window)-1]
	}
	l.window = append(l.window, now)
	l.last = now
	l.totalRequests++
}

// ReportSuccess nudges the interval down after a successful request.
// No-op unless the limiter is adaptive.
func (l *Limiter) ReportSuccess() {
	if !l.cfg.Adaptive {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.consecutiveErrors = 0
	if l.interval > l.cfg.MinInterval {
		l.interval = maxDuration(l.cfg.MinInterval, scale(l.interval, 0.95))
	}
}

// ReportError widens the interval after a failed request. A rate-limit
// signal doubles it; any other failure grows it gently. No-op unless the
// limiter is adaptive.
func (l *Limiter) ReportError(isRateLimit bool) {
	if !l.cfg.Adaptive {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.consecutiveErrors++
	if isRateLimit {
		l.interval = minDuration(l.cfg.MaxInterval, scale(l.interval, 2.0))
	} else {
		l.interval = minDuration(l.cfg.MaxInterval, scale(l.interval, 1.2))
	}
}

// CurrentInterval returns the controller's current minimum gap.
func (l *Limiter) CurrentInterval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}

// Stats returns a snapshot of the limiter's counters.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{
		TotalRequests:     l.totalRequests,
		TotalWait:         l.totalWait,
		CurrentInterval:   l.interval,
		ConsecutiveErrors: l.consecutiveErrors,
	}
	if l.totalRequests > 0 {
		s.AvgWait = l.totalWait / time.Duration(l.totalRequests)
	}
	return s
}

// Reset clears the window and restores the base interval.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.window = l.window[:0]
	l.last = time.Time{}
	l.interval = l.cfg.BaseInterval()
	l.consecutiveErrors = 0
}

func scale(d time.Duration, factor float64) time.Duration {
	return time.Duration(float64(d) * factor)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

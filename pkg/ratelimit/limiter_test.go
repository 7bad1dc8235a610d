package ratelimit

import (
	"context"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		RequestsPerMinute: 20,
		MinInterval:       2 * time.Second,
		MaxInterval:       5 * time.Second,
		Adaptive:          true,
	}
}

func TestWaitEnforcesMinInterval(t *testing.T) {
	l := New(Config{
		RequestsPerMinute: 1000,
		MinInterval:       20 * time.Millisecond,
		MaxInterval:       time.Second,
	})
	l.interval = 50 * time.Millisecond

	ctx := context.Background()

	if _, err := l.Wait(ctx); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	start := time.Now()
	waited, err := l.Wait(ctx)
	if err != nil {
		t.Fatalf("second Wait failed: %v", err)
	}
	elapsed := time.Since(start)

	if waited < 30*time.Millisecond {
		t.Errorf("expected a reported wait near the interval, got %v", waited)
	}
	if elapsed < 40*time.Millisecond {
		t.Errorf("expected consecutive requests to be spaced out, elapsed %v", elapsed)
	}
}

func TestWaitNeededSlidingWindow(t *testing.T) {
	l := New(Config{
		RequestsPerMinute: 3,
		MinInterval:       time.Millisecond,
		MaxInterval:       time.Second,
	})
	l.interval = 0

	now := time.Now()
	// Fill the window with requests 10s apart, oldest 20s ago.
	l.window = []time.Time{
		now.Add(-20 * time.Second),
		now.Add(-10 * time.Second),
		now,
	}

	required := l.waitNeeded(now)

	// The oldest entry leaves the window in 40s, plus the safety margin.
	want := 40*time.Second + windowMargin
	if required != want {
		t.Errorf("waitNeeded = %v, want %v", required, want)
	}
}

func TestWaitNeededWindowNotFull(t *testing.T) {
	l := New(Config{
		RequestsPerMinute: 3,
		MinInterval:       time.Millisecond,
		MaxInterval:       time.Second,
	})
	l.interval = 0

	now := time.Now()
	l.window = []time.Time{now.Add(-time.Second)}

	if required := l.waitNeeded(now); required != 0 {
		t.Errorf("expected no wait with a non-full window, got %v", required)
	}
}

func TestWaitContextCancellation(t *testing.T) {
	l := New(Config{
		RequestsPerMinute: 1000,
		MinInterval:       time.Millisecond,
		MaxInterval:       time.Minute,
	})
	l.interval = time.Minute

	if _, err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	before := l.Stats().TotalRequests
	if _, err := l.Wait(ctx); err == nil {
		t.Fatal("expected Wait to fail when the context expires")
	}
	if after := l.Stats().TotalRequests; after != before {
		t.Errorf("a cancelled wait must not record a request: before=%d after=%d", before, after)
	}
}

func TestReportErrorDoublesOnRateLimit(t *testing.T) {
	l := New(testConfig())
	l.interval = 3 * time.Second

	l.ReportError(true)
	if got := l.CurrentInterval(); got != 5*time.Second {
		t.Errorf("expected doubling to cap at the max interval, got %v", got)
	}

	l.ReportError(true)
	if got := l.CurrentInterval(); got != 5*time.Second {
		t.Errorf("interval must never exceed the max, got %v", got)
	}
}

func TestReportErrorGrowsGentlyOnOtherFailures(t *testing.T) {
	l := New(testConfig())
	l.interval = 3 * time.Second

	l.ReportError(false)
	if got := l.CurrentInterval(); got != 3600*time.Millisecond {
		t.Errorf("expected a 1.2x growth, got %v", got)
	}
	if l.Stats().ConsecutiveErrors != 1 {
		t.Errorf("expected one consecutive error, got %d", l.Stats().ConsecutiveErrors)
	}
}

func TestReportSuccessShrinksTowardFloor(t *testing.T) {
	l := New(testConfig())
	l.interval = 2100 * time.Millisecond

	prev := l.CurrentInterval()
	for i := 0; i < 50; i++ {
		l.ReportSuccess()
		cur := l.CurrentInterval()
		if cur > prev {
			t.Fatalf("interval grew on success: %v -> %v", prev, cur)
		}
		prev = cur
	}

	if got := l.CurrentInterval(); got != 2*time.Second {
		t.Errorf("expected the interval to settle at the floor, got %v", got)
	}
	if l.Stats().ConsecutiveErrors != 0 {
		t.Error("success must reset the consecutive error count")
	}
}

func TestNonAdaptiveIgnoresFeedback(t *testing.T) {
	cfg := testConfig()
	cfg.Adaptive = false
	l := New(cfg)

	before := l.CurrentInterval()
	l.ReportError(true)
	l.ReportSuccess()
	if got := l.CurrentInterval(); got != before {
		t.Errorf("non-adaptive limiter changed its interval: %v -> %v", before, got)
	}
}

func TestReset(t *testing.T) {
	l := New(testConfig())
	l.interval = 5 * time.Second
	l.window = append(l.window, time.Now())
	l.consecutiveErrors = 3

	l.Reset()

	if got := l.CurrentInterval(); got != testConfig().BaseInterval() {
		t.Errorf("expected base interval after reset, got %v", got)
	}
	if len(l.window) != 0 {
		t.Error("expected window to be cleared after reset")
	}
	if l.Stats().ConsecutiveErrors != 0 {
		t.Error("expected error count to be cleared after reset")
	}
}

func TestStats(t *testing.T) {
	l := New(Config{
		RequestsPerMinute: 1000,
		MinInterval:       time.Millisecond,
		MaxInterval:       time.Second,
	})
	l.interval = 0

	for i := 0; i < 3; i++ {
		if _, err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}

	s := l.Stats()
	if s.TotalRequests != 3 {
		t.Errorf("expected 3 recorded requests, got %d", s.TotalRequests)
	}
}

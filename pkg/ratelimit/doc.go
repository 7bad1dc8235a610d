// Package ratelimit paces outbound requests to the article-list platform.
//
// The platform's abuse thresholds are undocumented, so the limiter combines
// three mechanisms instead of a fixed quota:
//
// Minimum interval gate:
//   - Enforces a gap between consecutive requests
//   - The gap adapts between a configured minimum and maximum
//
// Sliding window:
//   - Tracks the timestamps of the most recent requests
//   - Blocks once the per-minute quota is filled, until the window slides
//
// Adaptive controller:
//   - ReportSuccess shrinks the interval multiplicatively (x0.95)
//   - ReportError grows it (x2.0 on a throttling signal, x1.2 otherwise)
//   - AdaptiveLimiter additionally reacts to observed response times
//
// Usage:
//
//	limiter := ratelimit.New(ratelimit.Config{
//	    RequestsPerMinute: 20,
//	    MinInterval:       2 * time.Second,
//	    MaxInterval:       5 * time.Second,
//	    Adaptive:          true,
//	})
//
//	waited, err := limiter.Wait(ctx)
//	if err != nil {
//	    return err // context cancelled
//	}
//	resp, err := doRequest()
//	if err != nil {
//	    limiter.ReportError(apierrors.IsRateLimit(err))
//	    return err
//	}
//	limiter.ReportSuccess()
//
// One Limiter instance is shared by every fetch task of a session; Wait is
// a single critical section, so concurrent tasks cannot both pass the gate
// in the same instant.
package ratelimit

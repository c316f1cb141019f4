package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps one global token bucket shared by every transfer of one
// direction (upload or download), per spec.md §5's single process-wide
// throughput cap with per-connection fair-share draining. A zero bpsLimit
// means unlimited, matching DownloadRateLimitBps/UploadRateLimitBps's "0 =
// unlimited" convention in internal/config.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter builds a limiter allowing bpsLimit bytes/second with a burst
// equal to one second's worth, or an unlimited limiter when bpsLimit <= 0.
func NewLimiter(bpsLimit int64) *Limiter {
	if bpsLimit <= 0 {
		return &Limiter{rl: rate.NewLimiter(rate.Inf, 0)}
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(bpsLimit), int(bpsLimit))}
}

// WaitN blocks until n bytes' worth of budget is available or ctx is done.
func (l *Limiter) WaitN(ctx context.Context, n int) error {
	return l.rl.WaitN(ctx, n)
}

// SetLimit changes the bucket's rate at runtime, e.g. when the user edits
// the bandwidth cap via config reload.
func (l *Limiter) SetLimit(bpsLimit int64) {
	if bpsLimit <= 0 {
		l.rl.SetLimit(rate.Inf)
		return
	}
	l.rl.SetLimit(rate.Limit(bpsLimit))
	l.rl.SetBurst(int(bpsLimit))
}

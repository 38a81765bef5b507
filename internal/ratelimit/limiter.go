package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a sliding window rate limiter shared by every caller of a remote
// service. At most max requests are admitted inside any window.
type Limiter struct {
	mu       sync.Mutex
	requests []time.Time
	max      int
	window   time.Duration
}

// New creates a limiter that admits max requests per window.
func New(max int, window time.Duration) *Limiter {
	if max < 1 {
		max = 1
	}
	return &Limiter{
		max:      max,
		window:   window,
		requests: make([]time.Time, 0, max),
	}
}

// TMDB returns a limiter matching TMDB's documented 30 requests per 10 seconds.
func TMDB() *Limiter {
	return New(30, 10*time.Second)
}

// Debrid returns a limiter matching Real-Debrid's 1 request per 2 seconds.
func Debrid() *Limiter {
	return New(1, 2*time.Second)
}

// Wait blocks until a request can be made within the limit. It only returns an
// error when ctx is done first.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.prune(now)

		if len(l.requests) < l.max {
			l.requests = append(l.requests, now)
			l.mu.Unlock()
			return nil
		}

		// slot frees up when the oldest request leaves the window
		wait := l.window - now.Sub(l.requests[0]) + 10*time.Millisecond
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Window reports the configured quota.
func (l *Limiter) Window() (int, time.Duration) {
	return l.max, l.window
}

func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	kept := l.requests[:0]
	for _, req := range l.requests {
		if req.After(cutoff) {
			kept = append(kept, req)
		}
	}
	l.requests = kept
}

package ratelimit

import (
	"context"
	"sync"
	"time"

	"quotecache/internal/provider"
)

// MinInterval wraps a fetcher and enforces a minimum time between upstream
// calls. Callers wait until the interval has elapsed since the last call,
// or return early if the context is canceled.
type MinInterval struct {
	F        provider.Fetcher
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string { return m.F.Name() }

func (m *MinInterval) Fetch(ctx context.Context, syms []string) (provider.Prices, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		wait := time.Until(m.last.Add(m.Interval))
		m.mu.Unlock()
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return nil, provider.Wrap(m.F.Name(), "rate limit", ctx.Err())
			case <-t.C:
			}
		}
	}
	prices, err := m.F.Fetch(ctx, syms)
	if m.Interval > 0 {
		m.mu.Lock()
		m.last = time.Now()
		m.mu.Unlock()
	}
	return prices, err
}

// Wrap decorates f according to the configured limits: a token bucket when
// maxPerMinute is set, otherwise a minimum interval when minInterval is set.
// Concurrent identical calls are always coalesced.
func Wrap(f provider.Fetcher, maxPerMinute, burst int, minInterval time.Duration) provider.Fetcher {
	switch {
	case maxPerMinute > 0:
		if burst <= 0 {
			burst = 1
		}
		f = &TokenBucketFetcher{F: f, TB: NewTokenBucket(float64(maxPerMinute)/60.0, burst)}
	case minInterval > 0:
		f = &MinInterval{F: f, Interval: minInterval}
	}
	return &Coalesce{F: f}
}

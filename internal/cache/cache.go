// Package cache keeps an in-memory price snapshot refreshed in the
// background from a crypto and an equity fetcher.
//
// Reads are a single atomic pointer load and never wait on a refresh.
// Exactly one refresh cycle runs at a time; a cycle requested while another
// is in flight is dropped. A failed side keeps its previous prices.
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"quotecache/internal/provider"
	"quotecache/internal/symbols"
)

// ErrCold is returned by Read until the first refresh cycle publishes.
var ErrCold = errors.New("cache: prices not yet available")

// DefaultFetchTimeout bounds each upstream call when Config leaves it unset.
const DefaultFetchTimeout = 10 * time.Second

type Config struct {
	// AllowSet is both the equity symbols requested every cycle and the
	// filter applied to what gets published.
	AllowSet symbols.AllowSet
	// FetchTimeout bounds each fetcher call independently.
	FetchTimeout time.Duration
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

type Cache struct {
	cfg    Config
	crypto provider.Fetcher
	equity provider.Fetcher
	log    zerolog.Logger

	current atomic.Pointer[Snapshot]
	running atomic.Bool
	cycles  atomic.Uint64
	skipped atomic.Uint64

	mu     sync.Mutex // guards status
	status Status
}

func New(cfg Config, crypto, equity provider.Fetcher, logger zerolog.Logger) *Cache {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c := &Cache{
		cfg:    cfg,
		crypto: crypto,
		equity: equity,
		log:    logger.With().Str("component", "cache").Logger(),
	}
	c.status.Crypto.Name = crypto.Name()
	c.status.Equity.Name = equity.Name()
	return c
}

// Read returns the current snapshot without blocking or doing I/O.
func (c *Cache) Read() (*Snapshot, error) {
	s := c.current.Load()
	if s == nil {
		return nil, ErrCold
	}
	return s, nil
}

// AllowSet returns the configured equity allow-set.
func (c *Cache) AllowSet() symbols.AllowSet { return c.cfg.AllowSet }

// RunCycle fetches both sides concurrently, merges them with the current
// snapshot and publishes the result. It returns immediately with a Skipped
// outcome when another cycle is in flight.
func (c *Cache) RunCycle(ctx context.Context) Outcome {
	if !c.running.CompareAndSwap(false, true) {
		c.skipped.Add(1)
		c.log.Debug().Str("event", "refresh_skipped").Msg("refresh already in flight")
		return Outcome{Kind: Skipped, Snapshot: c.current.Load()}
	}
	defer c.running.Store(false)
	c.cycles.Add(1)

	start := c.cfg.Now()
	began := time.Now()
	var (
		cryptoPrices, stockPrices provider.Prices
		cryptoErr, equityErr      error
	)
	// Each side has its own deadline; neither cancels the other.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		cryptoPrices, cryptoErr = c.fetch(ctx, c.crypto, nil)
	}()
	go func() {
		defer wg.Done()
		stockPrices, equityErr = c.fetch(ctx, c.equity, c.cfg.AllowSet.Symbols())
	}()
	wg.Wait()

	c.recordStatus(start, cryptoErr, equityErr)
	out := Outcome{StartedAt: start, CryptoErr: cryptoErr, EquityErr: equityErr}

	prev := c.current.Load()
	if cryptoErr != nil && equityErr != nil {
		out.Kind = Failure
		out.Snapshot = prev
		c.log.Error().
			Str("event", "refresh_error").
			AnErr("crypto_error", cryptoErr).
			AnErr("equity_error", equityErr).
			Bool("warm", prev != nil).
			Msg("refresh failed, keeping previous prices")
		return out
	}

	if cryptoErr != nil {
		cryptoPrices = carryOver(prev, (*Snapshot).Crypto)
	}
	if equityErr != nil {
		stockPrices = carryOver(prev, (*Snapshot).Stocks)
	} else {
		stockPrices = c.allowed(stockPrices)
	}

	next := &Snapshot{updatedAt: start, crypto: cryptoPrices.Clone(), stocks: stockPrices.Clone()}
	c.current.Store(next)

	out.Snapshot = next
	out.Kind = Success
	if cryptoErr != nil || equityErr != nil {
		out.Kind = Partial
		ev := c.log.Warn().Str("event", "refresh_partial")
		if cryptoErr != nil {
			ev = ev.Str("stale", c.crypto.Name()).Err(cryptoErr)
		} else {
			ev = ev.Str("stale", c.equity.Name()).Err(equityErr)
		}
		ev.Int("crypto_count", len(next.crypto)).Int("stock_count", len(next.stocks)).Msg("refresh partially failed, serving stale side")
		return out
	}
	c.log.Info().
		Str("event", "refresh_success").
		Int("crypto_count", len(next.crypto)).
		Int("stock_count", len(next.stocks)).
		Dur("took", time.Since(began)).
		Msg("prices refreshed")
	return out
}

// fetch calls f with its own deadline. The call is abandoned once the
// deadline passes even if f ignores its context.
func (c *Cache) fetch(ctx context.Context, f provider.Fetcher, syms []string) (provider.Prices, error) {
	fctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	type result struct {
		prices provider.Prices
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := f.Fetch(fctx, syms)
		ch <- result{p, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, provider.Wrap(f.Name(), "fetch", r.err)
		}
		return r.prices.Clone(), nil
	case <-fctx.Done():
		return nil, provider.Wrap(f.Name(), "fetch", fctx.Err())
	}
}

func (c *Cache) allowed(p provider.Prices) provider.Prices {
	if c.cfg.AllowSet.Len() == 0 {
		return p
	}
	out := make(provider.Prices, len(p))
	for sym, price := range p {
		if c.cfg.AllowSet.Contains(sym) {
			out[sym] = price
		}
	}
	return out
}

func carryOver(prev *Snapshot, side func(*Snapshot) provider.Prices) provider.Prices {
	if prev == nil {
		return provider.Prices{}
	}
	return side(prev)
}

func (c *Cache) recordStatus(at time.Time, cryptoErr, equityErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Crypto.record(at, cryptoErr)
	c.status.Equity.record(at, equityErr)
}

// Status returns a copy of the refresh bookkeeping.
func (c *Cache) Status() Status {
	c.mu.Lock()
	st := c.status
	c.mu.Unlock()

	st.Cycles = c.cycles.Load()
	st.Skipped = c.skipped.Load()
	if s := c.current.Load(); s != nil {
		st.Warm = true
		st.UpdatedAt = s.UpdatedAtSeconds()
	}
	return st
}

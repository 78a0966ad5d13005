package ratelimit

import (
	"context"
	"strings"

	"golang.org/x/sync/singleflight"
	"quotecache/internal/provider"
	"quotecache/internal/symbols"
)

// Coalesce shares one upstream call between concurrent fetches for the same
// symbol set. Every caller gets its own copy of the result.
type Coalesce struct {
	F provider.Fetcher

	sf singleflight.Group
}

func (c *Coalesce) Name() string { return c.F.Name() }

func (c *Coalesce) Fetch(ctx context.Context, syms []string) (provider.Prices, error) {
	key := strings.Join(symbols.Sorted(symbols.Dedupe(syms)), ",")
	v, err, _ := c.sf.Do(key, func() (any, error) {
		return c.F.Fetch(ctx, syms)
	})
	if err != nil {
		return nil, err
	}
	return v.(provider.Prices).Clone(), nil
}

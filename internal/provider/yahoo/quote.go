package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"quotecache/internal/provider"
	"quotecache/internal/symbols"
)

type quoteResponse struct {
	QuoteResponse struct {
		Result []quote `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

type quote struct {
	Symbol             string      `json:"symbol"`
	RegularMarketPrice json.Number `json:"regularMarketPrice"`
}

// Fetch returns regular market prices for the requested symbols that are in
// the allow-set. Requested symbols outside it are dropped before the call.
// Any failed chunk fails the whole fetch.
func (c *Client) Fetch(ctx context.Context, syms []string) (provider.Prices, error) {
	want := c.allow.Filter(syms)
	if len(want) == 0 {
		return provider.Prices{}, nil
	}

	wantSet := make(map[string]struct{}, len(want))
	for _, s := range want {
		wantSet[s] = struct{}{}
	}

	out := make(provider.Prices, len(want))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrency)
	for _, chunk := range chunkStrings(want, c.chunkSize) {
		g.Go(func() error {
			got, err := c.fetchChunk(gctx, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for sym, price := range got {
				if _, ok := wantSet[sym]; ok {
					out[sym] = price
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, provider.Wrap(name, "quote", err)
	}
	return out, nil
}

func (c *Client) fetchChunk(ctx context.Context, chunk []string) (provider.Prices, error) {
	query := maps.Clone(c.query)
	query.Set("symbols", strings.Join(chunk, ","))

	url := fmt.Sprintf("%s/v7/finance/quote?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return nil, provider.StatusError(res.StatusCode, string(b))
	}

	var body quoteResponse
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding quote response: %w", err)
	}
	if e := body.QuoteResponse.Error; e != nil && len(body.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("provider error: code=%s msg=%q", e.Code, e.Description)
	}

	out := make(provider.Prices, len(body.QuoteResponse.Result))
	for _, q := range body.QuoteResponse.Result {
		sym := symbols.Normalize(q.Symbol)
		if sym == "" {
			continue
		}
		price, ok, err := provider.ParsePrice(q.RegularMarketPrice)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", sym, err)
		}
		if ok {
			out[sym] = price
		}
	}
	return out, nil
}

func chunkStrings(in []string, size int) [][]string {
	if size <= 0 || len(in) == 0 {
		return [][]string{in}
	}
	out := make([][]string, 0, (len(in)+size-1)/size)
	for i := 0; i < len(in); i += size {
		j := i + size
		if j > len(in) {
			j = len(in)
		}
		out = append(out, in[i:j])
	}
	return out
}

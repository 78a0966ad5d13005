package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"sort"
	"strings"

	"quotecache/internal/provider"
)

// Fetch retrieves the fixed BTC/ETH pair. The requested symbols are ignored.
func (c *Client) Fetch(ctx context.Context, _ []string) (provider.Prices, error) {
	ids := make([]string, 0, len(coins))
	for id := range coins {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	query := maps.Clone(c.query)
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", c.vsCurrency)

	url := fmt.Sprintf("%s/simple/price?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, provider.Wrap(name, "creating request", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.Wrap(name, "performing request", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return nil, provider.Wrap(name, "simple price", provider.StatusError(res.StatusCode, string(b)))
	}

	// {"bitcoin":{"usd":63210.12},"ethereum":{"usd":2588.34}}
	var body map[string]map[string]json.Number
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, provider.Wrap(name, "decoding response", err)
	}

	out := make(provider.Prices, len(coins))
	for id, sym := range coins {
		quotes, ok := body[id]
		if !ok {
			continue
		}
		price, ok, err := provider.ParsePrice(quotes[c.vsCurrency])
		if err != nil {
			return nil, provider.Wrap(name, "decoding "+id, err)
		}
		if ok {
			out[sym] = price
		}
	}
	return out, nil
}

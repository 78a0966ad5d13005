package coingecko

import (
	"net/http"
	"net/url"

	"quotecache/internal/provider"
)

const (
	baseURL = "https://api.coingecko.com/api/v3"
	name    = "coingecko"
)

// coins maps the CoinGecko ids this client always requests to the symbols
// they are served under.
var coins = map[string]string{
	"bitcoin":  "BTC",
	"ethereum": "ETH",
}

// Symbols lists the crypto symbols the client produces.
var Symbols = []string{"BTC", "ETH"}

// Client is a crypto quote fetcher for the CoinGecko simple price API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient performs the requests.
	httpClient provider.HTTPClient
	// vsCurrency is the quote currency, e.g. usd.
	vsCurrency string
	// header contains additional headers to be sent with each request.
	header http.Header
	// query contains additional query parameters to be sent with each request.
	query url.Values
}

// Option is a configuration option for the CoinGecko client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient provider.HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithQuery sets additional query parameters to be sent with each request.
// Parameters the client sets itself take precedence.
func WithQuery(query url.Values) Option {
	return func(c *Client) {
		for key, values := range query {
			for _, value := range values {
				c.query.Add(key, value)
			}
		}
	}
}

// WithAPIKey sends a demo API key. An empty key is ignored.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if key != "" {
			c.header.Set("x-cg-demo-api-key", key)
		}
	}
}

// New creates a new CoinGecko client.
func New(options ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		vsCurrency: "usd",
		header:     http.Header{"Accept": []string{"application/json"}},
		query:      url.Values{},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) Name() string { return name }

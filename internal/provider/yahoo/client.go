package yahoo

import (
	"net/http"
	"net/url"

	"quotecache/internal/provider"
	"quotecache/internal/symbols"
)

const (
	baseURL = "https://query1.finance.yahoo.com"
	name    = "yahoo"

	// DefaultChunkSize keeps the symbols query short enough for the quote endpoint.
	DefaultChunkSize = 50
)

// Client is an equity/ETF quote fetcher for the Yahoo Finance v7 quote API.
type Client struct {
	baseURL    string
	httpClient provider.HTTPClient
	header     http.Header
	query      url.Values

	// allow restricts which symbols are ever sent upstream.
	allow symbols.AllowSet
	// chunkSize splits large symbol lists into several requests.
	chunkSize int
	// maxConcurrency limits concurrent chunk requests.
	maxConcurrency int
}

// Option is a configuration option for the Yahoo client.
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

// WithAllowSet restricts fetches to allow. An empty set disables filtering.
func WithAllowSet(allow symbols.AllowSet) Option {
	return func(c *Client) {
		c.allow = allow
	}
}

// WithChunkSize sets how many symbols go into one upstream request.
func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithMaxConcurrency limits how many chunk requests run at once.
func WithMaxConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// New creates a new Yahoo client.
func New(options ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header: http.Header{
			// The quote endpoint rejects non-browser agents.
			"User-Agent": []string{"Mozilla/5.0"},
			"Accept":     []string{"application/json"},
		},
		query:          url.Values{"fields": []string{"symbol,regularMarketPrice"}},
		chunkSize:      DefaultChunkSize,
		maxConcurrency: 1,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) Name() string { return name }

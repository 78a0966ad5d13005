package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"quotecache/internal/cache"
	"quotecache/internal/provider/coingecko"
	"quotecache/internal/symbols"
)

const (
	serviceName = "quote-cache"
	version     = "1.0.0"
)

// priceReader is the read side of the cache the handlers depend on.
type priceReader interface {
	Read() (*cache.Snapshot, error)
	Status() cache.Status
	AllowSet() symbols.AllowSet
}

type routerOptions struct {
	CORSOrigins   []string
	RequireAPIKey bool
	APIKey        string
}

var endpoints = []string{"/healthz", "/v1/prices", "/v1/crypto", "/v1/stocks?symbols=AAPL,MSFT", "/v1/status"}

func newRouter(pr priceReader, opts routerOptions, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(requestID(), accessLog(logger), gin.Recovery(), cors(opts.CORSOrigins))

	h := &handlers{pr: pr, now: time.Now}
	r.GET("/", h.root)
	r.GET("/healthz", h.healthz)

	v1 := r.Group("/v1")
	if opts.RequireAPIKey {
		v1.Use(apiKey(opts.APIKey))
	}
	v1.GET("/prices", h.prices)
	v1.GET("/crypto", h.crypto)
	v1.GET("/stocks", h.stocks)
	v1.GET("/status", h.status)
	return r
}

type handlers struct {
	pr  priceReader
	now func() time.Time
}

func (h *handlers) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":           serviceName,
		"version":        version,
		"endpoints":      endpoints,
		"allowed_stocks": h.pr.AllowSet().Symbols(),
		"crypto_symbols": coingecko.Symbols,
	})
}

func (h *handlers) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":   true,
		"time": float64(h.now().UnixNano()) / float64(time.Second),
	})
}

func (h *handlers) prices(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) crypto(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"updated_at": snap.UpdatedAtSeconds(),
		"crypto":     snap.Crypto(),
	})
}

// stocks serves the requested symbols that are in the allow-set; unknown
// symbols are silently dropped. Without a symbols query it serves the whole
// allow-set.
func (h *handlers) stocks(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	allow := h.pr.AllowSet()
	want := allow.Symbols()
	if q := strings.TrimSpace(c.Query("symbols")); q != "" {
		want = allow.Filter(symbols.ParseCSV(q))
	}
	c.JSON(http.StatusOK, gin.H{
		"updated_at": snap.UpdatedAtSeconds(),
		"stocks":     snap.StocksFor(want),
	})
}

func (h *handlers) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.pr.Status())
}

// snapshot writes 503 and reports false while the cache is cold.
func (h *handlers) snapshot(c *gin.Context) (*cache.Snapshot, bool) {
	snap, err := h.pr.Read()
	if errors.Is(err, cache.ErrCold) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "prices not yet available"})
		return nil, false
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return nil, false
	}
	return snap, true
}

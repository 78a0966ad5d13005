package main

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"quotecache/internal/cache"
	"quotecache/internal/provider"
	"quotecache/internal/symbols"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeReader struct {
	snap   *cache.Snapshot
	status cache.Status
	allow  symbols.AllowSet
}

func (f *fakeReader) Read() (*cache.Snapshot, error) {
	if f.snap == nil {
		return nil, cache.ErrCold
	}
	return f.snap, nil
}

func (f *fakeReader) Status() cache.Status { return f.status }
func (f *fakeReader) AllowSet() symbols.AllowSet { return f.allow }

var updatedAt = time.Unix(1724851200, 500_000_000)

func warmReader() *fakeReader {
	return &fakeReader{
		snap: cache.NewSnapshot(updatedAt,
			provider.Prices{"BTC": 63210.12, "ETH": 2588.34},
			provider.Prices{"AAPL": 221.91, "MSFT": 419.31, "SPY": 554.02},
		),
		status: cache.Status{Warm: true, UpdatedAt: 1724851200.5, Cycles: 3},
		allow:  symbols.NewAllowSet([]string{"AAPL", "MSFT", "SPY", "BRK-B"}),
	}
}

func serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	return serve(t, h, httptest.NewRequest(http.MethodGet, target, nil))
}

func TestPrices_Cold(t *testing.T) {
	r := newRouter(&fakeReader{allow: symbols.NewAllowSet([]string{"AAPL"})}, routerOptions{}, zerolog.Nop())

	for _, target := range []string{"/v1/prices", "/v1/crypto", "/v1/stocks?symbols=AAPL"} {
		rr := get(t, r, target)
		require.Equal(t, http.StatusServiceUnavailable, rr.Code, target)
		require.JSONEq(t, `{"error":"prices not yet available"}`, rr.Body.String(), target)
	}

	// healthz and status answer regardless of cache state
	rr := get(t, r, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	var health struct {
		OK   bool    `json:"ok"`
		Time float64 `json:"time"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	require.True(t, health.OK)
	require.Positive(t, health.Time)

	rr = get(t, r, "/v1/status")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"warm":false`)
}

func TestPrices_FullSnapshot(t *testing.T) {
	r := newRouter(warmReader(), routerOptions{}, zerolog.Nop())

	rr := get(t, r, "/v1/prices")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{
		"updated_at": 1724851200.5,
		"crypto": {"BTC": 63210.12, "ETH": 2588.34},
		"stocks": {"AAPL": 221.91, "MSFT": 419.31, "SPY": 554.02}
	}`, rr.Body.String())

	rr = get(t, r, "/v1/crypto")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"updated_at": 1724851200.5, "crypto": {"BTC": 63210.12, "ETH": 2588.34}}`, rr.Body.String())
}

func TestStocks_FiltersToAllowSet(t *testing.T) {
	r := newRouter(warmReader(), routerOptions{}, zerolog.Nop())

	// Lower-case input is normalized; TSLA is not allowed and is dropped.
	rr := get(t, r, "/v1/stocks?symbols=aapl,TSLA,%20spy%20")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"updated_at": 1724851200.5, "stocks": {"AAPL": 221.91, "SPY": 554.02}}`, rr.Body.String())

	// Allowed but not yet priced: simply absent.
	rr = get(t, r, "/v1/stocks?symbols=BRK.B")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"updated_at": 1724851200.5, "stocks": {}}`, rr.Body.String())

	rr = get(t, r, "/v1/stocks")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"updated_at": 1724851200.5, "stocks": {"AAPL": 221.91, "MSFT": 419.31, "SPY": 554.02}}`, rr.Body.String())
}

func TestAPIKey(t *testing.T) {
	r := newRouter(warmReader(), routerOptions{RequireAPIKey: true, APIKey: "s3cret"}, zerolog.Nop())

	rr := get(t, r, "/v1/prices")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.JSONEq(t, `{"detail":"Invalid or missing API key"}`, rr.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/v1/prices", nil)
	req.Header.Set("X-API-Key", "wrong")
	require.Equal(t, http.StatusUnauthorized, serve(t, r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/prices", nil)
	req.Header.Set("X-API-Key", "s3cret")
	require.Equal(t, http.StatusOK, serve(t, r, req).Code)

	// Unversioned routes stay open.
	require.Equal(t, http.StatusOK, get(t, r, "/healthz").Code)
	require.Equal(t, http.StatusOK, get(t, r, "/").Code)
}

func TestRoot(t *testing.T) {
	r := newRouter(warmReader(), routerOptions{}, zerolog.Nop())

	rr := get(t, r, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	var info struct {
		Name          string   `json:"name"`
		AllowedStocks []string `json:"allowed_stocks"`
		CryptoSymbols []string `json:"crypto_symbols"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	require.Equal(t, serviceName, info.Name)
	require.Equal(t, []string{"AAPL", "MSFT", "SPY", "BRK-B"}, info.AllowedStocks)
	require.Equal(t, []string{"BTC", "ETH"}, info.CryptoSymbols)
}

func TestMiddleware_RequestIDAndCORS(t *testing.T) {
	r := newRouter(warmReader(), routerOptions{CORSOrigins: []string{"https://app.example.com"}}, zerolog.Nop())

	rr := get(t, r, "/healthz")
	_, err := uuid.Parse(rr.Header().Get("X-Request-ID"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	req.Header.Set("Origin", "https://app.example.com")
	rr = serve(t, r, req)
	require.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
	require.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/v1/prices", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = serve(t, r, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestWithGzip(t *testing.T) {
	h := withGzip(newRouter(warmReader(), routerOptions{}, zerolog.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/v1/crypto", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := serve(t, h, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.JSONEq(t, `{"updated_at": 1724851200.5, "crypto": {"BTC": 63210.12, "ETH": 2588.34}}`, string(body))

	rr = get(t, h, "/v1/crypto")
	require.Empty(t, rr.Header().Get("Content-Encoding"))
}

func TestWithGzip_SkipsBodylessResponses(t *testing.T) {
	h := withGzip(newRouter(warmReader(), routerOptions{}, zerolog.Nop()))

	// CORS preflight
	req := httptest.NewRequest(http.MethodOptions, "/v1/prices", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := serve(t, h, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, rr.Header().Get("Content-Encoding"))
	require.Zero(t, rr.Body.Len())

	// A handler answering 204 on a GET
	noContent := withGzip(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr = serve(t, noContent, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, rr.Header().Get("Content-Encoding"))
	require.Zero(t, rr.Body.Len())
}

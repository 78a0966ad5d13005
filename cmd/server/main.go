package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"quotecache/internal/cache"
	"quotecache/internal/config"
	"quotecache/internal/httpx"
	"quotecache/internal/logging"
	"quotecache/internal/provider"
	"quotecache/internal/provider/coingecko"
	"quotecache/internal/provider/ratelimit"
	"quotecache/internal/provider/yahoo"
	"quotecache/internal/symbols"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	allow := symbols.NewAllowSet(cfg.Stocks.Allowed)
	crypto, equity := buildFetchers(cfg, allow)

	c := cache.New(cache.Config{
		AllowSet:     allow,
		FetchTimeout: cfg.Refresh.FetchTimeout(),
	}, crypto, equity, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := cache.NewScheduler(c, cfg.Refresh.Interval(), logger)
	if err := sched.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("scheduler")
	}
	defer sched.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(c, routerOptions{
		CORSOrigins:   cfg.CORS.Origins,
		RequireAPIKey: cfg.Auth.RequireAPIKey,
		APIKey:        cfg.Auth.APIKey,
	}, logger.With().Str("component", "http").Logger())

	requestTimeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withGzip(router),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       requestTimeout,
		WriteTimeout:      requestTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Server.Port).
			Int("allowed_stocks", allow.Len()).
			Dur("refresh_interval", cfg.Refresh.Interval()).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server")
			stop()
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("shutdown")
	}
	logger.Info().Msg("server stopped")
}

// buildFetchers wires both upstream clients over one shared HTTP client and
// applies the configured rate limits.
func buildFetchers(cfg config.Config, allow symbols.AllowSet) (crypto, equity provider.Fetcher) {
	httpClient := httpx.New(cfg.Refresh.FetchTimeout())

	crypto = ratelimit.Wrap(
		coingecko.New(
			coingecko.WithHTTPClient(httpClient),
			coingecko.WithBaseURL(cfg.CoinGecko.BaseURL),
			coingecko.WithAPIKey(cfg.CoinGecko.APIKey),
		),
		cfg.CoinGecko.MaxRequestsPerMinute,
		cfg.CoinGecko.Burst,
		time.Duration(cfg.CoinGecko.MinRequestIntervalSec)*time.Second,
	)

	equity = ratelimit.Wrap(
		yahoo.New(
			yahoo.WithHTTPClient(httpClient),
			yahoo.WithBaseURL(cfg.Yahoo.BaseURL),
			yahoo.WithAllowSet(allow),
			yahoo.WithChunkSize(cfg.Yahoo.ChunkSize),
			yahoo.WithMaxConcurrency(cfg.Yahoo.MaxConcurrency),
		),
		cfg.Yahoo.MaxRequestsPerMinute,
		cfg.Yahoo.Burst,
		time.Duration(cfg.Yahoo.MinRequestIntervalSec)*time.Second,
	)
	return crypto, equity
}

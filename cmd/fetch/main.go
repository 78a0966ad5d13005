package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"quotecache/internal/cache"
	"quotecache/internal/config"
	"quotecache/internal/httpx"
	"quotecache/internal/logging"
	"quotecache/internal/provider/coingecko"
	"quotecache/internal/provider/yahoo"
	"quotecache/internal/symbols"
)

// fetch runs a single refresh cycle against the live upstreams and prints
// the resulting snapshot.
func main() {
	var (
		symbolsCSV string
		timeout    int
		configPath string
		logLevel   string
	)
	flag.StringVar(&symbolsCSV, "symbols", os.Getenv("ALLOWED_STOCKS"), "comma-separated equity symbols (defaults to the configured allow-set)")
	flag.IntVar(&timeout, "timeout", 0, "per-fetch timeout seconds (defaults to the configured fetch timeout)")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to a config file (optional)")
	flag.StringVar(&logLevel, "log-level", "warn", "log level")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger := logging.Setup(logLevel, "console")

	if symbolsCSV != "" {
		cfg.Stocks.Allowed = symbols.ParseCSV(symbolsCSV)
	}
	if timeout > 0 {
		cfg.Refresh.FetchTimeoutSec = timeout
	}
	allow := symbols.NewAllowSet(cfg.Stocks.Allowed)
	if allow.Len() == 0 {
		logger.Fatal().Msg("no symbols provided")
	}

	httpClient := httpx.New(cfg.Refresh.FetchTimeout())
	c := cache.New(cache.Config{AllowSet: allow, FetchTimeout: cfg.Refresh.FetchTimeout()},
		coingecko.New(
			coingecko.WithHTTPClient(httpClient),
			coingecko.WithBaseURL(cfg.CoinGecko.BaseURL),
			coingecko.WithAPIKey(cfg.CoinGecko.APIKey),
		),
		yahoo.New(
			yahoo.WithHTTPClient(httpClient),
			yahoo.WithBaseURL(cfg.Yahoo.BaseURL),
			yahoo.WithAllowSet(allow),
			yahoo.WithChunkSize(cfg.Yahoo.ChunkSize),
			yahoo.WithMaxConcurrency(cfg.Yahoo.MaxConcurrency),
		),
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Refresh.FetchTimeout()+time.Second)
	defer cancel()

	out := c.RunCycle(ctx)
	if out.CryptoErr != nil {
		logger.Warn().Err(out.CryptoErr).Msg("crypto")
	}
	if out.EquityErr != nil {
		logger.Warn().Err(out.EquityErr).Msg("equity")
	}
	if out.Snapshot == nil {
		logger.Fatal().Str("outcome", out.Kind.String()).Msg("no prices received")
	}

	b, err := json.MarshalIndent(out.Snapshot, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("encode")
	}
	fmt.Println(string(b))
}

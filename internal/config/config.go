package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultStocks is the allow-set used when none is configured.
var DefaultStocks = []string{
	"AAPL", "MSFT", "AMZN", "GOOGL", "META", "TSLA", "NVDA", "AMD",
	"NFLX", "SPY", "QQQ", "VTI", "IWM", "DIA", "BRK-B", "JPM", "KO", "XOM", "UNH", "AVGO",
}

type Server struct {
	Port              string `mapstructure:"port"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"`
}

type Refresh struct {
	IntervalSec     int `mapstructure:"interval_sec"`
	FetchTimeoutSec int `mapstructure:"fetch_timeout_sec"`
}

type Stocks struct {
	Allowed []string `mapstructure:"allowed"`
}

type CoinGecko struct {
	BaseURL               string `mapstructure:"base_url"`
	APIKey                string `mapstructure:"api_key"`
	MaxRequestsPerMinute  int    `mapstructure:"max_rpm"`
	Burst                 int    `mapstructure:"burst"`
	MinRequestIntervalSec int    `mapstructure:"min_interval_sec"`
}

type Yahoo struct {
	BaseURL               string `mapstructure:"base_url"`
	ChunkSize             int    `mapstructure:"chunk_size"`
	MaxConcurrency        int    `mapstructure:"max_concurrency"`
	MaxRequestsPerMinute  int    `mapstructure:"max_rpm"`
	Burst                 int    `mapstructure:"burst"`
	MinRequestIntervalSec int    `mapstructure:"min_interval_sec"`
}

type Auth struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	APIKey        string `mapstructure:"api_key"`
}

type CORS struct {
	Origins []string `mapstructure:"origins"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Server    Server    `mapstructure:"server"`
	Refresh   Refresh   `mapstructure:"refresh"`
	Stocks    Stocks    `mapstructure:"stocks"`
	CoinGecko CoinGecko `mapstructure:"coingecko"`
	Yahoo     Yahoo     `mapstructure:"yahoo"`
	Auth      Auth      `mapstructure:"auth"`
	CORS      CORS      `mapstructure:"cors"`
	Log       Log       `mapstructure:"log"`
}

func (r Refresh) Interval() time.Duration     { return time.Duration(r.IntervalSec) * time.Second }
func (r Refresh) FetchTimeout() time.Duration { return time.Duration(r.FetchTimeoutSec) * time.Second }

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"server.port":                "PORT",
	"server.request_timeout_sec": "REQUEST_TIMEOUT_SEC",
	"refresh.interval_sec":       "REFRESH_INTERVAL_SEC",
	"refresh.fetch_timeout_sec":  "FETCH_TIMEOUT_SEC",
	"stocks.allowed":             "ALLOWED_STOCKS",
	"coingecko.base_url":         "COINGECKO_BASE_URL",
	"coingecko.api_key":          "COINGECKO_API_KEY",
	"coingecko.max_rpm":          "COINGECKO_MAX_RPM",
	"coingecko.burst":            "COINGECKO_BURST",
	"coingecko.min_interval_sec": "COINGECKO_MIN_INTERVAL_SEC",
	"yahoo.base_url":             "YAHOO_BASE_URL",
	"yahoo.chunk_size":           "YAHOO_CHUNK_SIZE",
	"yahoo.max_concurrency":      "YAHOO_MAX_CONCURRENCY",
	"yahoo.max_rpm":              "YAHOO_MAX_RPM",
	"yahoo.burst":                "YAHOO_BURST",
	"yahoo.min_interval_sec":     "YAHOO_MIN_INTERVAL_SEC",
	"auth.require_api_key":       "REQUIRE_API_KEY",
	"auth.api_key":               "API_KEY",
	"cors.origins":               "CORS_ORIGINS",
	"log.level":                  "LOG_LEVEL",
	"log.format":                 "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout_sec", 10)
	v.SetDefault("refresh.interval_sec", 30)
	v.SetDefault("refresh.fetch_timeout_sec", 10)
	v.SetDefault("stocks.allowed", DefaultStocks)
	v.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("yahoo.chunk_size", 50)
	v.SetDefault("yahoo.max_concurrency", 2)
	v.SetDefault("auth.require_api_key", false)
	v.SetDefault("cors.origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from defaults, an optional config file (yaml or
// json, by extension), a .env file if present, and environment variables,
// in increasing order of precedence.
func Load(path string) (Config, error) {
	// .env only seeds the process environment; real env vars win.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Stocks.Allowed = splitCSV(cfg.Stocks.Allowed)
	cfg.CORS.Origins = splitCSV(cfg.CORS.Origins)
	if len(cfg.Stocks.Allowed) == 0 {
		cfg.Stocks.Allowed = append([]string(nil), DefaultStocks...)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate performs basic configuration validation.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Port) == "" {
		errs = append(errs, errors.New("server port cannot be empty"))
	}
	if c.Refresh.IntervalSec <= 0 {
		errs = append(errs, fmt.Errorf("refresh interval must be greater than 0, got %d", c.Refresh.IntervalSec))
	}
	if c.Refresh.FetchTimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must be greater than 0, got %d", c.Refresh.FetchTimeoutSec))
	}
	if len(c.Stocks.Allowed) == 0 {
		errs = append(errs, errors.New("allowed stocks cannot be empty"))
	}
	if c.Yahoo.ChunkSize < 0 || c.Yahoo.MaxConcurrency < 0 {
		errs = append(errs, errors.New("yahoo chunk size and concurrency cannot be negative"))
	}
	if c.Auth.RequireAPIKey && c.Auth.APIKey == "" {
		errs = append(errs, errors.New("api key is required but API_KEY is not set"))
	}
	return errors.Join(errs...)
}

// splitCSV flattens comma lists coming from env vars or config files,
// trimming blanks.
func splitCSV(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

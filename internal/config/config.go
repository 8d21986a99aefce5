// Package config defines the top-level configuration for the trade cost
// estimator and provides validation helpers.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/tradecost/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TRADECOST_* environment variables.
type Config struct {
	Feed      FeedConfig      `toml:"feed"`
	Estimator EstimatorConfig `toml:"estimator"`
	Redis     RedisConfig     `toml:"redis"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// FeedConfig identifies the order book stream.
type FeedConfig struct {
	Scheme           string   `toml:"scheme"`
	Host             string   `toml:"host"`
	Port             int      `toml:"port"`
	Path             string   `toml:"path"`
	Exchange         string   `toml:"exchange"`
	Symbol           string   `toml:"symbol"`
	HandshakeTimeout duration `toml:"handshake_timeout"`
	// ReadTimeout bounds each receive. Zero waits indefinitely.
	ReadTimeout duration `toml:"read_timeout"`
}

// URL renders scheme://host:port/path.
func (f FeedConfig) URL() string {
	u := url.URL{
		Scheme: f.Scheme,
		Host:   net.JoinHostPort(f.Host, strconv.Itoa(f.Port)),
		Path:   f.Path,
	}
	return u.String()
}

// EstimatorConfig holds the trade parameters and the fixed maker/taker
// features.
type EstimatorConfig struct {
	USDAmount           float64 `toml:"usd_amount"`
	FeeTier             string  `toml:"fee_tier"`
	Volatility          float64 `toml:"volatility"`
	IsMarketOrder       bool    `toml:"is_market_order"`
	OrderBookDepth      float64 `toml:"order_book_depth"`
	TimeSinceLastTrade  float64 `toml:"time_since_last_trade"`
	HistorySize         int     `toml:"history_size"`
	SkipInvalidMessages bool    `toml:"skip_invalid_messages"`
}

// Parameters converts the estimator section into the live parameter set.
func (e EstimatorConfig) Parameters() (domain.Parameters, error) {
	tier, err := domain.ParseFeeTier(e.FeeTier)
	if err != nil {
		return domain.Parameters{}, err
	}
	p := domain.Parameters{USDAmount: e.USDAmount, FeeTier: tier, Volatility: e.Volatility}
	return p, p.Validate()
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			Scheme:           "wss",
			Host:             "ws.gomarket-cpp.goquant.io",
			Port:             443,
			Path:             "/ws/l2-orderbook/okx/BTC-USDT-SWAP",
			Exchange:         "OKX",
			Symbol:           "BTC-USDT-SWAP",
			HandshakeTimeout: duration{15 * time.Second},
		},
		Estimator: EstimatorConfig{
			USDAmount:          100,
			FeeTier:            "TIER1",
			Volatility:         0.6,
			IsMarketOrder:      true,
			OrderBookDepth:     0.4,
			TimeSinceLastTrade: 0.3,
			HistorySize:        50,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"stream_ended", "stream_failed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"stream": true,
	"full":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validSchemes = map[string]bool{
	"ws":  true,
	"wss": true,
}

func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: stream, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Feed
	if !validSchemes[strings.ToLower(c.Feed.Scheme)] {
		errs = append(errs, fmt.Sprintf("feed: scheme must be ws or wss, got %q", c.Feed.Scheme))
	}
	if c.Feed.Host == "" {
		errs = append(errs, "feed: host must not be empty")
	}
	if c.Feed.Port <= 0 || c.Feed.Port > 65535 {
		errs = append(errs, fmt.Sprintf("feed: port must be 1-65535, got %d", c.Feed.Port))
	}
	if !strings.HasPrefix(c.Feed.Path, "/") {
		errs = append(errs, fmt.Sprintf("feed: path must start with /, got %q", c.Feed.Path))
	}
	if c.Feed.Exchange == "" {
		errs = append(errs, "feed: exchange must not be empty")
	}
	if c.Feed.ReadTimeout.Duration < 0 {
		errs = append(errs, "feed: read_timeout must be >= 0")
	}

	// Estimator
	if c.Estimator.USDAmount <= 0 {
		errs = append(errs, fmt.Sprintf("estimator: usd_amount must be > 0, got %v", c.Estimator.USDAmount))
	}
	if _, err := domain.ParseFeeTier(c.Estimator.FeeTier); err != nil {
		errs = append(errs, fmt.Sprintf("estimator: fee_tier must be TIER1, TIER2 or TIER3, got %q", c.Estimator.FeeTier))
	}
	if c.Estimator.Volatility < 0 {
		errs = append(errs, "estimator: volatility must be >= 0")
	}
	if c.Estimator.OrderBookDepth < 0 || c.Estimator.OrderBookDepth > 1 {
		errs = append(errs, fmt.Sprintf("estimator: order_book_depth must be in [0,1], got %v", c.Estimator.OrderBookDepth))
	}
	if c.Estimator.HistorySize < 2 {
		errs = append(errs, "estimator: history_size must be >= 2")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

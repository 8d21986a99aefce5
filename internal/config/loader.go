package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRADECOST_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRADECOST_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.Scheme, "TRADECOST_FEED_SCHEME")
	setStr(&cfg.Feed.Host, "TRADECOST_FEED_HOST")
	setInt(&cfg.Feed.Port, "TRADECOST_FEED_PORT")
	setStr(&cfg.Feed.Path, "TRADECOST_FEED_PATH")
	setStr(&cfg.Feed.Exchange, "TRADECOST_FEED_EXCHANGE")
	setStr(&cfg.Feed.Symbol, "TRADECOST_FEED_SYMBOL")
	setDuration(&cfg.Feed.HandshakeTimeout, "TRADECOST_FEED_HANDSHAKE_TIMEOUT")
	setDuration(&cfg.Feed.ReadTimeout, "TRADECOST_FEED_READ_TIMEOUT")

	// ── Estimator ──
	setFloat64(&cfg.Estimator.USDAmount, "TRADECOST_ESTIMATOR_USD_AMOUNT")
	setStr(&cfg.Estimator.FeeTier, "TRADECOST_ESTIMATOR_FEE_TIER")
	setFloat64(&cfg.Estimator.Volatility, "TRADECOST_ESTIMATOR_VOLATILITY")
	setBool(&cfg.Estimator.IsMarketOrder, "TRADECOST_ESTIMATOR_IS_MARKET_ORDER")
	setFloat64(&cfg.Estimator.OrderBookDepth, "TRADECOST_ESTIMATOR_ORDER_BOOK_DEPTH")
	setFloat64(&cfg.Estimator.TimeSinceLastTrade, "TRADECOST_ESTIMATOR_TIME_SINCE_LAST_TRADE")
	setInt(&cfg.Estimator.HistorySize, "TRADECOST_ESTIMATOR_HISTORY_SIZE")
	setBool(&cfg.Estimator.SkipInvalidMessages, "TRADECOST_ESTIMATOR_SKIP_INVALID_MESSAGES")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRADECOST_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRADECOST_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRADECOST_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRADECOST_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRADECOST_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRADECOST_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRADECOST_REDIS_TLS_ENABLED")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TRADECOST_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TRADECOST_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRADECOST_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TRADECOST_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TRADECOST_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRADECOST_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRADECOST_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRADECOST_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRADECOST_MODE")
	setStr(&cfg.LogLevel, "TRADECOST_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

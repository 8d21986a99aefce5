package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/tradecost/internal/cache/redis"
	"github.com/alanyoungcy/tradecost/internal/config"
	"github.com/alanyoungcy/tradecost/internal/domain"
	"github.com/alanyoungcy/tradecost/internal/metrics"
	"github.com/alanyoungcy/tradecost/internal/notify"
)

// Dependencies bundles the optional collaborators of the estimator. Caches
// and the bus are nil when Redis is disabled; Notifier is nil when no sender
// is configured.
type Dependencies struct {
	EstimateCache domain.EstimateCache
	BookCache     domain.BookCache
	SignalBus     domain.SignalBus

	Notifier *notify.Notifier
	Metrics  *metrics.Registry
}

// Wire constructs the concrete dependencies from cfg and returns them with a
// cleanup function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Metrics: metrics.NewRegistry(true),
	}

	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.EstimateCache = redis.NewEstimateCache(redisClient)
		deps.BookCache = redis.NewBookCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		logger.InfoContext(ctx, "redis connected", slog.String("addr", cfg.Redis.Addr))
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}

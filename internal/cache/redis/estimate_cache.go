package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tradecost/internal/domain"
)

// EstimateCache implements domain.EstimateCache using Redis hashes.
// Each instrument's latest estimate is stored at "estimate:{exchange}:{symbol}"
// with fields "payload" (JSON), "net_cost" and "ts" (Unix nanoseconds).
type EstimateCache struct {
	rdb *redis.Client
}

// NewEstimateCache creates an EstimateCache backed by the given Client.
func NewEstimateCache(c *Client) *EstimateCache {
	return &EstimateCache{rdb: c.Underlying()}
}

func estimateKey(exchange, symbol string) string {
	return "estimate:" + exchange + ":" + symbol
}

// SetLatest replaces the stored estimate for the estimate's instrument.
func (ec *EstimateCache) SetLatest(ctx context.Context, est domain.CostEstimate) error {
	payload, err := json.Marshal(est)
	if err != nil {
		return fmt.Errorf("redis: marshal estimate: %w", err)
	}
	key := estimateKey(est.Exchange, est.Symbol)
	err = ec.rdb.HSet(ctx, key,
		"payload", payload,
		"net_cost", strconv.FormatFloat(est.NetCost, 'f', -1, 64),
		"ts", strconv.FormatInt(est.Timestamp.UnixNano(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("redis: set estimate %s: %w", key, err)
	}
	return nil
}

// GetLatest returns the stored estimate, or domain.ErrNotFound.
func (ec *EstimateCache) GetLatest(ctx context.Context, exchange, symbol string) (domain.CostEstimate, error) {
	key := estimateKey(exchange, symbol)
	payload, err := ec.rdb.HGet(ctx, key, "payload").Result()
	if err == redis.Nil {
		return domain.CostEstimate{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CostEstimate{}, fmt.Errorf("redis: get estimate %s: %w", key, err)
	}

	var est domain.CostEstimate
	if err := json.Unmarshal([]byte(payload), &est); err != nil {
		return domain.CostEstimate{}, fmt.Errorf("redis: decode estimate %s: %w", key, err)
	}
	return est, nil
}

// Compile-time interface check.
var _ domain.EstimateCache = (*EstimateCache)(nil)

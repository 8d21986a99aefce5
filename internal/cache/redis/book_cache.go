package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tradecost/internal/domain"
)

// BookCache implements domain.BookCache. The top of book for an instrument
// lives in the hash "book:{exchange}:{symbol}:bbo" with fields bid, bid_qty,
// ask, ask_qty, mid and ts.
type BookCache struct {
	rdb *redis.Client
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.Underlying()}
}

func bookBBOKey(exchange, symbol string) string {
	return "book:" + exchange + ":" + symbol + ":bbo"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// SetBBO overwrites the stored top of book.
func (bc *BookCache) SetBBO(ctx context.Context, bbo domain.BBO) error {
	key := bookBBOKey(bbo.Exchange, bbo.Symbol)
	err := bc.rdb.HSet(ctx, key,
		"bid", formatFloat(bbo.BestBid.Price),
		"bid_qty", formatFloat(bbo.BestBid.Quantity),
		"ask", formatFloat(bbo.BestAsk.Price),
		"ask_qty", formatFloat(bbo.BestAsk.Quantity),
		"mid", formatFloat(bbo.MidPrice),
		"ts", strconv.FormatInt(bbo.Timestamp.UnixNano(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("redis: set bbo %s: %w", key, err)
	}
	return nil
}

// GetBBO reads the stored top of book. It returns domain.ErrNotFound when
// nothing has been stored for the instrument.
func (bc *BookCache) GetBBO(ctx context.Context, exchange, symbol string) (domain.BBO, error) {
	key := bookBBOKey(exchange, symbol)
	vals, err := bc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.BBO{}, fmt.Errorf("redis: get bbo %s: %w", key, err)
	}
	if len(vals) == 0 {
		return domain.BBO{}, domain.ErrNotFound
	}

	bbo := domain.BBO{Exchange: exchange, Symbol: symbol}
	fields := []struct {
		name string
		dst  *float64
	}{
		{"bid", &bbo.BestBid.Price},
		{"bid_qty", &bbo.BestBid.Quantity},
		{"ask", &bbo.BestAsk.Price},
		{"ask_qty", &bbo.BestAsk.Quantity},
		{"mid", &bbo.MidPrice},
	}
	for _, f := range fields {
		s, ok := vals[f.name]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.BBO{}, fmt.Errorf("redis: parse bbo %s.%s: %w", key, f.name, err)
		}
		*f.dst = v
	}
	if tsStr, ok := vals["ts"]; ok {
		if tsNano, err := strconv.ParseInt(tsStr, 10, 64); err == nil {
			bbo.Timestamp = time.Unix(0, tsNano)
		}
	}
	return bbo, nil
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)

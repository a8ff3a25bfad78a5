package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	latestBarPrefix = "bar:latest:"
	historyPrefix   = "bars:history:"

	latestBarTTL = 1 * time.Hour // TTL prevents unbounded memory growth
	historyTTL   = 1 * time.Hour
)

// BarCache keeps the most recent bar per symbol and caches upstream
// historical responses. Viewers never read from it: live bars are pushed
// over the websocket only, with no replay.
type BarCache struct {
	client *redis.Client
}

func NewBarCache(client *redis.Client) *BarCache {
	return &BarCache{client: client}
}

// SetLatest stores the raw bar payload for a symbol.
func (c *BarCache) SetLatest(ctx context.Context, symbol string, raw []byte) error {
	return c.client.Set(ctx, latestBarPrefix+symbol, raw, latestBarTTL).Err()
}

// Latest returns the cached bar for a symbol, or nil when none is cached.
func (c *BarCache) Latest(ctx context.Context, symbol string) ([]byte, error) {
	val, err := c.client.Get(ctx, latestBarPrefix+symbol).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// SetHistory caches a historical-bars response for a symbol.
func (c *BarCache) SetHistory(ctx context.Context, symbol string, raw []byte) error {
	return c.client.Set(ctx, historyPrefix+symbol, raw, historyTTL).Err()
}

// History returns the cached historical response, or nil on a miss.
func (c *BarCache) History(ctx context.Context, symbol string) ([]byte, error) {
	val, err := c.client.Get(ctx, historyPrefix+symbol).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (c *BarCache) Close() error {
	return c.client.Close()
}

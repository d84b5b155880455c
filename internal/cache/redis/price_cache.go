package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paddockhq/paddock/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each
// offering's share price is stored as a hash at key "price:{offeringID}"
// with fields "cents" and "ts" (Unix nanosecond timestamp).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(offeringID string) string {
	return "price:" + offeringID
}

// SetPrice stores the latest share price and timestamp for an offering.
func (pc *PriceCache) SetPrice(ctx context.Context, offeringID string, priceCents int64, ts time.Time) error {
	fields := map[string]interface{}{
		"cents": strconv.FormatInt(priceCents, 10),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, priceKey(offeringID), fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", offeringID, err)
	}
	return nil
}

// GetPrice retrieves the latest share price and timestamp for an offering.
// It returns domain.ErrNotFound when no price has been cached yet.
func (pc *PriceCache) GetPrice(ctx context.Context, offeringID string) (int64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(offeringID)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", offeringID, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	centsStr, ok := vals["cents"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	cents, err := strconv.ParseInt(centsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", offeringID, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", offeringID, err)
	}

	return cents, time.Unix(0, tsNano), nil
}

// GetPrices retrieves the latest prices for multiple offerings using a
// pipeline. Offerings without a cached price are silently omitted from the
// result map.
func (pc *PriceCache) GetPrices(ctx context.Context, offeringIDs []string) (map[string]int64, error) {
	if len(offeringIDs) == 0 {
		return map[string]int64{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(offeringIDs))
	for _, id := range offeringIDs {
		cmds[id] = pipe.HGetAll(ctx, priceKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	result := make(map[string]int64, len(offeringIDs))
	for id, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		centsStr, ok := vals["cents"]
		if !ok {
			continue
		}
		cents, err := strconv.ParseInt(centsStr, 10, 64)
		if err != nil {
			continue
		}
		result[id] = cents
	}
	return result, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)

package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest offering share prices.
type PriceCache interface {
	SetPrice(ctx context.Context, offeringID string, priceCents int64, ts time.Time) error
	GetPrice(ctx context.Context, offeringID string) (int64, time.Time, error)
	GetPrices(ctx context.Context, offeringIDs []string) (map[string]int64, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub fan-out and durable streams. Trade, risk, and
// auction timer events are emitted here for out-of-scope consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

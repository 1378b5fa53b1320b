package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ledgerKeyPrefix = "stripe:event:"
	// DefaultLedgerTTL covers the provider's retry window.
	DefaultLedgerTTL = 7 * 24 * time.Hour
)

// Ledger remembers which provider events were already handled.
type Ledger interface {
	// FirstSeen records id and reports whether it had not been seen before.
	FirstSeen(ctx context.Context, eventID string) (bool, error)
}

type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}
	return &RedisLedger{client: client, ttl: ttl}
}

func (l *RedisLedger) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, ledgerKeyPrefix+eventID, time.Now().Unix(), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("event ledger: %w", err)
	}
	return ok, nil
}

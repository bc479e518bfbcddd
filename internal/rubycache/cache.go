// Package rubycache owns the Redis side of the balance subsystem: the
// cached per-user balance that serializes concurrent spends, the recent
// spend ring kept for support lookups, the short-lived refill lock and the
// idempotency claims for webhook events.
//
// The ledger in Postgres stays the audit truth. The cache authorizes a
// spend first and the ledger catches up, so the only invariant enforced
// here is that a single user's balance never goes below zero: the whole
// check-and-decrement runs as one Lua script on one key.
package rubycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/samkok24/char-chat-project-sub001/internal/apperrors"
)

const (
	balanceKeyFmt = "ruby:balance:%s"
	recentKeyFmt  = "ruby:recent:%s"

	// Newest-first ring of recent spends per user, advisory only
	recentRingSize = 20
)

// Spend script return codes
const (
	spendOK           = 0
	spendInsufficient = -1
	spendMiss         = -2
)

// One atomic round trip: read, check, decrement, log. Concurrent spends on
// the same user serialize on this script.
var spendScript = redis.NewScript(`
local balance = redis.call('GET', KEYS[1])
if not balance then
	return {-2, 0}
end
balance = tonumber(balance)
local amount = tonumber(ARGV[1])
if balance < amount then
	return {-1, balance}
end
local remaining = redis.call('DECRBY', KEYS[1], amount)
redis.call('LPUSH', KEYS[2], ARGV[2])
redis.call('LTRIM', KEYS[2], 0, tonumber(ARGV[3]) - 1)
return {0, remaining}
`)

// SpendRecord is what lands in the recent spend ring.
type SpendRecord struct {
	TxID   uuid.UUID `json:"tx_id"`
	Amount int64     `json:"amount"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Cache is the process-wide Redis handle. Construct once at startup, Close
// at shutdown.
type Cache struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr string) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Cache{rdb: rdb}, nil
}

// NewWithClient wraps an existing client. Used by tests with redismock.
func NewWithClient(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Spend atomically checks and decrements the cached balance.
// Returns the balance after the decrement on success.
// Returns apperrors.ErrCacheMiss when no balance is cached (no mutation),
// apperrors.ErrBalanceInsufficient with the current balance when the user
// cannot afford the amount (no mutation), and an error wrapping
// apperrors.ErrCacheUnavailable when Redis itself fails.
func (c *Cache) Spend(ctx context.Context, userID uuid.UUID, amount int64, record SpendRecord) (int64, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return 0, fmt.Errorf("marshal spend record: %w", err)
	}

	keys := []string{
		fmt.Sprintf(balanceKeyFmt, userID),
		fmt.Sprintf(recentKeyFmt, userID),
	}

	raw, err := spendScript.Run(ctx, c.rdb, keys, amount, payload, recentRingSize).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrCacheUnavailable, err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 2 {
		return 0, fmt.Errorf("unexpected spend script reply: %v", raw)
	}
	code, codeOK := reply[0].(int64)
	balance, balanceOK := reply[1].(int64)
	if !codeOK || !balanceOK {
		return 0, fmt.Errorf("unexpected spend script reply: %v", raw)
	}

	switch code {
	case spendOK:
		return balance, nil
	case spendInsufficient:
		return balance, apperrors.ErrBalanceInsufficient
	case spendMiss:
		return 0, apperrors.ErrCacheMiss
	default:
		return 0, fmt.Errorf("unexpected spend script code: %d", code)
	}
}

// Seed caches the balance read from the ledger for a short window.
// Seeds only when no balance is cached: a key that reappeared since the
// caller's miss already carries decrements the ledger read predates, and
// overwriting it would let those spends happen twice. Returns whether the
// value was written.
func (c *Cache) Seed(ctx context.Context, userID uuid.UUID, amount int64, ttl time.Duration) (bool, error) {
	seeded, err := c.rdb.SetNX(ctx, fmt.Sprintf(balanceKeyFmt, userID), amount, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", apperrors.ErrCacheUnavailable, err)
	}

	return seeded, nil
}

// Balance returns the cached balance or apperrors.ErrCacheMiss
func (c *Cache) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	amount, err := c.rdb.Get(ctx, fmt.Sprintf(balanceKeyFmt, userID)).Int64()

	switch {
	case err == nil:
		return amount, nil
	case errors.Is(err, redis.Nil):
		return 0, apperrors.ErrCacheMiss
	default:
		return 0, fmt.Errorf("%w: %v", apperrors.ErrCacheUnavailable, err)
	}
}

// Invalidate drops the cached balance so the next read reseeds from the
// ledger. Called after ledger-side writes that bypass the cache.
func (c *Cache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	err := c.rdb.Del(ctx, fmt.Sprintf(balanceKeyFmt, userID)).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrCacheUnavailable, err)
	}

	return nil
}

// RecentSpends returns the newest-first spend ring for support lookups
func (c *Cache) RecentSpends(ctx context.Context, userID uuid.UUID) ([]SpendRecord, error) {
	raw, err := c.rdb.LRange(ctx, fmt.Sprintf(recentKeyFmt, userID), 0, recentRingSize-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCacheUnavailable, err)
	}

	records := make([]SpendRecord, 0, len(raw))
	for _, item := range raw {
		var r SpendRecord
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			// A malformed ring item is advisory data, skip it
			continue
		}
		records = append(records, r)
	}

	return records, nil
}

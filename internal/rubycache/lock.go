package rubycache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/samkok24/char-chat-project-sub001/internal/apperrors"
)

const refillLockKeyFmt = "ruby:refill:lock:%s"

// Owner-verified release: delete only if the token still matches, so an
// expired lock reacquired by someone else is never released by the old
// holder.
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// TryRefillLock takes the per-user refill lock without blocking and
// returns a release func the holder must call in a terminating block.
// Returns apperrors.ErrLockNotAcquired when another holder has it; the
// caller skips crediting for this call.
func (c *Cache) TryRefillLock(ctx context.Context, userID uuid.UUID, ttl time.Duration) (func(context.Context) error, error) {
	key := fmt.Sprintf(refillLockKeyFmt, userID)
	token := uuid.NewString()

	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCacheUnavailable, err)
	}
	if !ok {
		return nil, apperrors.ErrLockNotAcquired
	}

	// Losing the lock to TTL expiry before release is not an error: the
	// script then deletes nothing
	release := func(ctx context.Context) error {
		err := unlockScript.Run(ctx, c.rdb, []string{key}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %v", apperrors.ErrCacheUnavailable, err)
		}
		return nil
	}

	return release, nil
}

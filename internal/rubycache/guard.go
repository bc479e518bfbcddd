package rubycache

import (
	"context"
	"fmt"
	"time"

	"github.com/samkok24/char-chat-project-sub001/internal/apperrors"
)

// Claim marks an external event as being processed. true means the caller
// owns processing for this key and must complete or explicitly release;
// false means the event was already claimed and the caller short-circuits
// with a no-op success (redelivery is expected, not an error).
//
// The TTL is only a backstop for a crashed holder. A holder that fails
// must call ReleaseClaim so a redelivered event is not blocked for the
// whole TTL.
func (c *Cache) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", apperrors.ErrCacheUnavailable, err)
	}

	return ok, nil
}

func (c *Cache) ReleaseClaim(ctx context.Context, key string) error {
	err := c.rdb.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrCacheUnavailable, err)
	}

	return nil
}

package middleware

// availability.go bridges the checkout engine's cache-invalidation
// hook to the Redis response cache.  Whenever a transition changes an
// offering's occupied count (reserve, confirm, cancel, reap), the
// cached catalog responses that display "N spots left" must be
// dropped so subsequent purchasers see fresh numbers.

import (
    "context"
    "log"

    "github.com/redis/go-redis/v9"
)

// AvailabilityInvalidator deletes cached catalog responses.  The
// response cache keys are opaque hashes under a common prefix, so
// invalidation is per-prefix rather than per-offering; catalog TTLs
// are short and the flush is cheap.  A nil Redis client disables
// invalidation (the displayed count is advisory either way — the
// store enforces capacity).
type AvailabilityInvalidator struct {
    rdb    *redis.Client
    prefix string
}

// NewAvailabilityInvalidator returns an invalidator for the given
// cache prefix.
func NewAvailabilityInvalidator(rdb *redis.Client, prefix string) *AvailabilityInvalidator {
    return &AvailabilityInvalidator{rdb: rdb, prefix: prefix}
}

// Invalidate removes every cached response under the prefix.  Errors
// are logged and swallowed; a stale display never blocks checkout.
func (a *AvailabilityInvalidator) Invalidate(ctx context.Context, offeringID uint64) {
    if a == nil || a.rdb == nil {
        return
    }
    var cursor uint64
    for {
        keys, next, err := a.rdb.Scan(ctx, cursor, a.prefix+":*", 100).Result()
        if err != nil {
            log.Printf("availability: scan cache keys: %v", err)
            return
        }
        if len(keys) > 0 {
            if err := a.rdb.Del(ctx, keys...).Err(); err != nil {
                log.Printf("availability: delete cache keys: %v", err)
                return
            }
        }
        cursor = next
        if cursor == 0 {
            return
        }
    }
}

package telephony

import (
	"context"
	"time"

	"voiceai-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// CallCaps limits simultaneous outbound calls per user using the Redis
// concurrency-cap scripts. A slot is acquired when a call starts and released
// when a terminal lifecycle event arrives; the TTL reclaims slots whose
// terminal event never shows up.
type CallCaps struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

func NewCallCaps(rdb *redis.Client, limit int, ttl time.Duration) *CallCaps {
	return &CallCaps{rdb: rdb, limit: limit, ttl: ttl}
}

func capKey(userID string) string {
	return "calls:active:" + userID
}

// Acquire returns false when the user is already at their concurrent-call
// limit.
func (c *CallCaps) Acquire(ctx context.Context, userID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, c.rdb, capKey(userID), c.limit, c.ttl)
}

func (c *CallCaps) Release(ctx context.Context, userID string) error {
	return utils.ReleaseConcurrencyCap(ctx, c.rdb, capKey(userID))
}

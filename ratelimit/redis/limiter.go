// Package redislimiter is the shared-state rate limiter backing the
// public webhook and status endpoints when more than one instance
// serves traffic.
package redislimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freevoice-app/memberkit/ratelimit"
)

const keyNS = "memberkit:rl:"

// Limiter is a Redis-backed sliding window limiter using ZSETs.
type Limiter struct {
	rdb    *redis.Client
	ctx    context.Context
	limits map[string]ratelimit.Limit
}

// New constructs a Redis limiter. Nil limits means
// ratelimit.Defaults().
func New(rdb *redis.Client, limits map[string]ratelimit.Limit) *Limiter {
	if limits == nil {
		limits = ratelimit.Defaults()
	}
	return &Limiter{rdb: rdb, ctx: context.Background(), limits: limits}
}

// AllowNamed reports whether one more request for key in bucket fits
// its sliding window. Each request lands in a per-key ZSET scored by
// time; members older than the window are trimmed in the same
// transaction and the resulting cardinality decides admission.
func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	if l == nil || l.rdb == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}
	lim := ratelimit.For(l.limits, bucket)
	now := time.Now().UnixMilli()
	start := now - lim.Window.Milliseconds()
	limitKey := keyNS + key + ":" + bucket

	pipe := l.rdb.TxPipeline()
	pipe.ZAdd(l.ctx, limitKey, redis.Z{Score: float64(now), Member: now})
	pipe.ZRemRangeByScore(l.ctx, limitKey, "0", fmt.Sprintf("%d", start))
	countCmd := pipe.ZCard(l.ctx, limitKey)
	pipe.Expire(l.ctx, limitKey, lim.Window+time.Second)
	if _, err := pipe.Exec(l.ctx); err != nil {
		return false, err
	}
	count, err := countCmd.Result()
	if err != nil {
		return false, err
	}
	if count > int64(lim.Limit) {
		l.rdb.ZRem(l.ctx, limitKey, now)
		return false, nil
	}
	return true, nil
}

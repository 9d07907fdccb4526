// Package memorylimiter is the single-process rate limiter used when
// no Redis address is configured (desktop builds talk to a local
// helper, not a shared cluster).
package memorylimiter

import (
	"fmt"
	"sync"
	"time"

	"github.com/freevoice-app/memberkit/ratelimit"
)

type bucketState struct {
	// timestamps holds request times in Unix ms, oldest first.
	timestamps []int64
}

// Limiter is an in-memory sliding-window rate limiter.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]ratelimit.Limit
	buckets map[string]*bucketState
	now     func() time.Time
}

// New constructs an in-memory limiter. Nil limits means
// ratelimit.Defaults().
func New(limits map[string]ratelimit.Limit) *Limiter {
	if limits == nil {
		limits = ratelimit.Defaults()
	}
	return &Limiter{
		limits:  limits,
		buckets: make(map[string]*bucketState),
		now:     time.Now,
	}
}

// AllowNamed reports whether one more request for key in bucket fits
// its sliding window, pruning expired entries on each call and
// dropping empty buckets so memory stays bounded.
func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}

	lim := ratelimit.For(l.limits, bucket)
	nowMs := l.now().UnixMilli()
	windowStart := nowMs - lim.Window.Milliseconds()
	limitKey := key + ":" + bucket

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[limitKey]
	if !ok {
		b = &bucketState{}
		l.buckets[limitKey] = b
	}

	ts := b.timestamps
	pruneIdx := 0
	for pruneIdx < len(ts) && ts[pruneIdx] < windowStart {
		pruneIdx++
	}
	if pruneIdx > 0 {
		ts = ts[pruneIdx:]
	}

	if len(ts) >= lim.Limit {
		// Deny without recording this attempt.
		b.timestamps = ts
		if len(ts) == 0 {
			delete(l.buckets, limitKey)
		}
		return false, nil
	}

	ts = append(ts, nowMs)
	b.timestamps = ts
	return true, nil
}

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is an in-process bucket limiter. It implements the same
// semantics as the datastore-backed limiter and is used in tests and
// single-node development setups.
type MemoryLimiter struct {
	mu          sync.Mutex
	granularity time.Duration
	buckets     map[bucketKey]int64
}

type bucketKey struct {
	identifier string
	action     string
	start      int64
}

// NewMemoryLimiter creates an in-memory limiter with the given bucket
// granularity.
func NewMemoryLimiter(granularity time.Duration) *MemoryLimiter {
	if granularity <= 0 {
		granularity = time.Minute
	}
	return &MemoryLimiter{
		granularity: granularity,
		buckets:     make(map[bucketKey]int64),
	}
}

// Check sums the buckets inside the lookback window and increments the
// current bucket when under the limit. The whole operation holds the lock,
// so concurrent callers can never exceed max.
func (l *MemoryLimiter) Check(ctx context.Context, identifier, action string, max int, window time.Duration) (Result, error) {
	now := time.Now()
	windowStart := now.Add(-window)
	bucketStart := now.Truncate(l.granularity).Unix()

	l.mu.Lock()
	defer l.mu.Unlock()

	var total int64
	oldest := int64(0)
	for key, count := range l.buckets {
		if key.identifier != identifier || key.action != action {
			continue
		}
		if key.start < windowStart.Unix() {
			delete(l.buckets, key)
			continue
		}
		total += count
		if oldest == 0 || key.start < oldest {
			oldest = key.start
		}
	}

	if total >= int64(max) {
		return Result{
			Allowed:      false,
			CurrentCount: total,
			ResetAt:      time.Unix(oldest, 0).Add(window),
		}, nil
	}

	l.buckets[bucketKey{identifier, action, bucketStart}]++
	return Result{
		Allowed:      true,
		CurrentCount: total + 1,
		ResetAt:      time.Unix(bucketStart, 0).Add(window),
	}, nil
}

// DeleteExpired drops buckets that left every possible window
func (l *MemoryLimiter) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var deleted int64
	for key := range l.buckets {
		if key.start < before.Unix() {
			delete(l.buckets, key)
			deleted++
		}
	}
	return deleted, nil
}

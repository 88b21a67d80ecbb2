package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RunLock is a best-effort distributed lock that stops overlapping cron
// fires from double-running the same trigger. It is advisory: if redis is
// unavailable the caller proceeds without the lock, since the pipeline
// itself is idempotent.
type RunLock struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewRunLock creates a run lock with the given TTL. The TTL should cover
// the wall-clock budget of one trigger invocation.
func NewRunLock(client goredis.UniversalClient, ttl time.Duration) *RunLock {
	return &RunLock{client: client, ttl: ttl}
}

// Acquire attempts to take the named lock. It returns false when another
// invocation already holds it, and true (with a release func) when taken or
// when redis is unreachable.
func (l *RunLock) Acquire(ctx context.Context, name string) (bool, func()) {
	if l == nil || l.client == nil {
		return true, func() {}
	}

	key := "trawler:runlock:" + name
	ok, err := l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		// Advisory only
		return true, func() {}
	}
	if !ok {
		return false, func() {}
	}

	return true, func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.client.Del(releaseCtx, key).Err()
	}
}

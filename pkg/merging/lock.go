package merging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ramsey-B/clover/pkg/redis"
)

// Locker serializes merges that touch the same clients.
type Locker interface {
	LockClients(ctx context.Context, tenantID string, clientIDs []string) (unlock func(context.Context), err error)
}

// RedisLocker holds one Redis lock per client for the duration of a merge.
type RedisLocker struct {
	locker *redis.Locker
	ttl    time.Duration
}

// NewRedisLocker creates a Locker whose locks expire after ttl.
func NewRedisLocker(locker *redis.Locker, ttl time.Duration) *RedisLocker {
	return &RedisLocker{locker: locker, ttl: ttl}
}

func (l *RedisLocker) LockClients(ctx context.Context, tenantID string, clientIDs []string) (func(context.Context), error) {
	keys := make([]string, len(clientIDs))
	for i, id := range clientIDs {
		keys[i] = fmt.Sprintf("merge:%s:%s", tenantID, id)
	}

	set, err := l.locker.AcquireAll(ctx, keys, l.ttl)
	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			return nil, ErrMergeInProgress
		}
		return nil, err
	}

	return func(ctx context.Context) {
		_ = set.Release(ctx)
	}, nil
}

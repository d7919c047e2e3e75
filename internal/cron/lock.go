package cron

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	pkgredis "github.com/abdulbasit0-UI/storefront-backend/pkg/redis"
)

const defaultLockTTL = 5 * time.Minute

// Lock grants one cycle at a time. Acquire reports false when another holder
// has it.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisLock is a lease keyed per worker name and tagged with a fresh owner
// token on every acquisition. A worker that dies mid cycle loses the lease
// after ttl.
type RedisLock struct {
	leases pkgredis.LeaseStore
	key    string
	ttl    time.Duration
	token  string
}

func NewRedisLock(leases pkgredis.LeaseStore, worker string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case leases == nil:
		return nil, errors.New("lease store required for cron lock")
	case worker == "":
		return nil, errors.New("worker name is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{leases: leases, key: leases.LockKey("cron", worker), ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	won, err := l.leases.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if won {
		l.token = token
	}
	return won, nil
}

// Release is a no-op unless this instance holds the lease.
func (l *RedisLock) Release(ctx context.Context) error {
	token := l.token
	if token == "" {
		return nil
	}
	l.token = ""
	if _, err := l.leases.ReleaseLease(ctx, l.key, token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

// LocalLock only excludes cycles inside this process. The API uses it for
// jobs over its embedded session store.
type LocalLock struct {
	held atomic.Bool
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	return l.held.CompareAndSwap(false, true), nil
}

func (l *LocalLock) Release(context.Context) error {
	l.held.Store(false)
	return nil
}

package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/redis"
)

const (
	defaultLockWait  = 5 * time.Second
	defaultLockTTL   = 10 * time.Second
	lockPollInterval = 25 * time.Millisecond
)

// Locker serializes work per identity key. Distinct keys never contend.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Entries are reference counted and
// dropped once nobody holds or waits on them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
	wait    time.Duration
}

// NewKeyedMutex builds a KeyedMutex that gives up after wait.
func NewKeyedMutex(wait time.Duration) *KeyedMutex {
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &KeyedMutex{entries: make(map[string]*lockEntry), wait: wait}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		m.entries[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	timer := time.NewTimer(m.wait)
	defer timer.Stop()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, entry)
		return nil, lockTimeout(key, ctx.Err())
	case <-timer.C:
		m.release(key, entry)
		return nil, lockTimeout(key, context.DeadlineExceeded)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			m.release(key, entry)
		})
	}, nil
}

func (m *KeyedMutex) release(key string, entry *lockEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(m.entries, key)
	}
}

// size reports how many keys are currently tracked.
func (m *KeyedMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// RedisLocker extends a KeyedMutex with a Redis SETNX lease so API replicas
// serialize on the same identity.
type RedisLocker struct {
	local *KeyedMutex
	store redis.LeaseStore
	scope string
	ttl   time.Duration
	wait  time.Duration
}

// NewRedisLocker constructs a lease-backed locker. Lease keys live under scope.
func NewRedisLocker(store redis.LeaseStore, scope string, ttl, wait time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis client required for cart lock")
	}
	if scope == "" {
		scope = "cart"
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &RedisLocker{local: NewKeyedMutex(wait), store: store, scope: scope, ttl: ttl, wait: wait}, nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	leaseKey := l.store.LockKey(l.scope, key)
	owner := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.store.SetNX(ctx, leaseKey, owner, l.ttl)
		if err != nil {
			unlockLocal()
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire cart lock")
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			unlockLocal()
			return nil, lockTimeout(key, context.DeadlineExceeded)
		}
		select {
		case <-ctx.Done():
			unlockLocal()
			return nil, lockTimeout(key, ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, _ = l.store.ReleaseLease(releaseCtx, leaseKey, owner)
			unlockLocal()
		})
	}, nil
}

func lockTimeout(key string, cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "cart is busy, retry shortly").
		WithReason(pkgerrors.ReasonLockTimeout).
		WithDetails(map[string]any{"identity": key})
}

// lockBoth acquires two identity locks in argument order.
func lockBoth(ctx context.Context, locker Locker, first, second string) (func(), error) {
	unlockFirst, err := locker.Lock(ctx, first)
	if err != nil {
		return nil, err
	}
	if second == first {
		return unlockFirst, nil
	}
	unlockSecond, err := locker.Lock(ctx, second)
	if err != nil {
		unlockFirst()
		return nil, err
	}
	return func() {
		unlockSecond()
		unlockFirst()
	}, nil
}

// Package idempotency records which deliveries a consumer has already
// applied, so at-least-once transports can be consumed exactly once.
//
// Claims live in Redis under sf:idempotency:<consumer>:<id> and expire after
// the configured TTL.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/redis"
)

// Guard claims delivery ids for one consumer.
type Guard struct {
	store    redis.IdempotencyStore
	consumer string
	ttl      time.Duration
	now      func() time.Time
}

// NewGuard binds store to consumer. A zero ttl keeps claims forever.
func NewGuard(store redis.IdempotencyStore, consumer string, ttl time.Duration) (*Guard, error) {
	consumer = strings.TrimSpace(consumer)
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case consumer == "":
		return nil, errors.New("consumer name is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, consumer: consumer, ttl: ttl, now: time.Now}, nil
}

// CheckAndMark claims id and reports true when an earlier delivery already
// held the claim.
func (g *Guard) CheckAndMark(ctx context.Context, id string) (bool, error) {
	key, err := g.key(id)
	if err != nil {
		return false, err
	}
	claimed, err := g.store.SetNX(ctx, key, g.now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return !claimed, nil
}

// Delete drops the claim on id so a failed delivery is applied on redelivery.
func (g *Guard) Delete(ctx context.Context, id string) error {
	key, err := g.key(id)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("delivery id is required")
	}
	return g.store.IdempotencyKey(g.consumer, id), nil
}

package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
)

// SessionStore persists checkout sessions with a sliding TTL. Load returns
// nil when no live session exists.
type SessionStore interface {
	Load(ctx context.Context, userID uuid.UUID) (*Session, error)
	Save(ctx context.Context, session *Session, ttl time.Duration) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

type redisKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CheckoutSessionKey(userID string) string
}

// RedisSessionStore keeps sessions as JSON under the checkout key namespace.
type RedisSessionStore struct {
	kv redisKV
}

func NewRedisSessionStore(kv redisKV) (*RedisSessionStore, error) {
	if kv == nil {
		return nil, errors.New("redis client required for checkout sessions")
	}
	return &RedisSessionStore{kv: kv}, nil
}

func (s *RedisSessionStore) Load(ctx context.Context, userID uuid.UUID) (*Session, error) {
	raw, err := s.kv.Get(ctx, s.kv.CheckoutSessionKey(userID.String()))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkout session: %w", err)
	}
	return decodeSession([]byte(raw))
}

func (s *RedisSessionStore) Save(ctx context.Context, session *Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.kv.CheckoutSessionKey(session.UserID.String()), string(payload), ttl); err != nil {
		return fmt.Errorf("save checkout session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, userID uuid.UUID) error {
	return s.kv.Del(ctx, s.kv.CheckoutSessionKey(userID.String()))
}

// pebbleRecord wraps a session with its absolute expiry; Pebble has no
// native key TTL.
type pebbleRecord struct {
	ExpiresAt time.Time       `json:"expiresAt"`
	Session   json.RawMessage `json:"session"`
}

// PebbleSessionStore is the embedded single-node alternative to Redis.
type PebbleSessionStore struct {
	db  *pebble.DB
	now func() time.Time
}

// OpenPebbleSessionStore opens (or creates) the store at dir. A nil fs uses
// the local disk.
func OpenPebbleSessionStore(dir string, fs vfs.FS) (*PebbleSessionStore, error) {
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	}
	db, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleSessionStore{db: db, now: time.Now}, nil
}

func (s *PebbleSessionStore) Close() error { return s.db.Close() }

func (s *PebbleSessionStore) Load(ctx context.Context, userID uuid.UUID) (*Session, error) {
	key := pebbleKey(userID)
	value, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkout session: %w", err)
	}
	var record pebbleRecord
	decodeErr := json.Unmarshal(value, &record)
	_ = closer.Close()
	if decodeErr != nil {
		return nil, fmt.Errorf("decode checkout session: %w", decodeErr)
	}
	if !record.ExpiresAt.IsZero() && !s.now().Before(record.ExpiresAt) {
		if err := s.db.Delete(key, pebble.NoSync); err != nil {
			return nil, fmt.Errorf("drop expired checkout session: %w", err)
		}
		return nil, nil
	}
	return decodeSession(record.Session)
}

func (s *PebbleSessionStore) Save(ctx context.Context, session *Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	record := pebbleRecord{Session: payload}
	if ttl > 0 {
		record.ExpiresAt = s.now().Add(ttl)
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := s.db.Set(pebbleKey(session.UserID), encoded, pebble.Sync); err != nil {
		return fmt.Errorf("save checkout session: %w", err)
	}
	return nil
}

func (s *PebbleSessionStore) Delete(ctx context.Context, userID uuid.UUID) error {
	return s.db.Delete(pebbleKey(userID), pebble.Sync)
}

// PurgeExpired removes every expired session and reports how many it dropped.
func (s *PebbleSessionStore) PurgeExpired(ctx context.Context) (int, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(pebblePrefix),
		UpperBound: []byte(pebblePrefix + "\xff"),
	})
	if err != nil {
		return 0, err
	}
	now := s.now()
	var expired [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		var record pebbleRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue
		}
		if !record.ExpiresAt.IsZero() && !now.Before(record.ExpiresAt) {
			expired = append(expired, append([]byte(nil), iter.Key()...))
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, key := range expired {
		if err := batch.Delete(key, nil); err != nil {
			return 0, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return len(expired), nil
}

const pebblePrefix = "checkout/"

func pebbleKey(userID uuid.UUID) []byte {
	return []byte(pebblePrefix + userID.String())
}

func decodeSession(raw []byte) (*Session, error) {
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	step, err := enums.ParseCheckoutStep(string(session.Step))
	if err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	session.Step = step
	return &session, nil
}

package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "orders:session:"
	defaultStoreTTL  = 24 * time.Hour
)

// RedisStoreOption customizes RedisStore.
type RedisStoreOption func(*RedisStore)

func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// RedisStore persists sessions in redis as JSON. Idle eviction is delegated
// to key TTL, refreshed on every save. The turn lock stays process-local:
// a multi-process deployment needs sticky routing per session id.
type RedisStore struct {
	rdb       redis.Cmdable
	keyPrefix string
	ttl       time.Duration
	locks     *lockTable
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb redis.Cmdable, opts ...RedisStoreOption) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	s := &RedisStore{
		rdb:       rdb,
		keyPrefix: defaultKeyPrefix,
		ttl:       defaultStoreTTL,
		locks:     newLockTable(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return s, nil
}

func (r *RedisStore) key(sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrInvalidSession
	}
	return r.keyPrefix + sessionID, nil
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	key, err := r.key(sessionID)
	if err != nil {
		return nil, err
	}
	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session loaded from store: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrNilSession
	}
	key, err := r.key(s.SessionID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := r.rdb.SetNX(ctx, key, payload, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, s.SessionID)
	}
	return nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrNilSession
	}
	key, err := r.key(s.SessionID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.rdb.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	key, err := r.key(sessionID)
	if err != nil {
		return err
	}
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *RedisStore) Acquire(sessionID string) func() {
	return r.locks.acquire(sessionID)
}

// EvictExpired is a no-op: TTL refreshed on save already bounds idle
// lifetime server-side.
func (r *RedisStore) EvictExpired(context.Context, time.Duration, time.Time) (int, error) {
	return 0, nil
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/portal-auth/internal/domain"
)

const (
	keyPrefix = "session:"
	scanCount = 200
)

// RedisStore keeps sessions in Redis under one key namespace per domain.
type RedisStore struct {
	client *redis.Client
	opts   options
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	return &RedisStore{client: client, opts: buildOptions(opts)}
}

func sessionKey(d domain.Domain, id string) string {
	return keyPrefix + d.String() + ":" + id
}

func (s *RedisStore) ttl() time.Duration {
	if s.opts.idleTimeout > 0 {
		return s.opts.idleTimeout
	}
	return 0
}

// Create stores a new session record.
func (s *RedisStore) Create(ctx context.Context, d domain.Domain, identityID, role, organizationID string) (domain.Session, error) {
	for {
		rec, err := newRecord(d, identityID, role, organizationID, s.opts.now())
		if err != nil {
			return domain.Session{}, err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return domain.Session{}, fmt.Errorf("marshal session: %w", err)
		}
		ok, err := s.client.SetNX(ctx, sessionKey(d, rec.ID), data, s.ttl()).Result()
		if err != nil {
			return domain.Session{}, fmt.Errorf("redis set session: %w", err)
		}
		if ok {
			return rec, nil
		}
	}
}

var errCorruptSession = errors.New("corrupt session record")

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter, key string) (domain.Session, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Session{}, ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("redis get session: %w", err)
	}
	var rec domain.Session
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", errCorruptSession, err)
	}
	return rec, nil
}

// Find resolves id within the domain namespace and refreshes its last-seen time.
func (s *RedisStore) Find(ctx context.Context, d domain.Domain, id string) (domain.Session, error) {
	if !d.Valid() {
		return domain.Session{}, ErrInvalidDomain
	}
	if id == "" {
		return domain.Session{}, ErrSessionNotFound
	}

	key := sessionKey(d, id)
	rec, err := s.load(ctx, s.client, key)
	if errors.Is(err, errCorruptSession) {
		return domain.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	if rec.Domain != d || rec.ID != id {
		return domain.Session{}, ErrSessionNotFound
	}

	now := s.opts.now().UTC()
	if s.opts.idle(rec, now) {
		_ = s.client.Del(ctx, key).Err()
		return domain.Session{}, ErrSessionNotFound
	}

	rec.LastSeenAt = now
	data, err := json.Marshal(rec)
	if err != nil {
		return domain.Session{}, fmt.Errorf("marshal session: %w", err)
	}
	// XX so a concurrent Destroy is never undone by a touch.
	ok, err := s.client.SetXX(ctx, key, data, s.ttl()).Result()
	if err != nil {
		return domain.Session{}, fmt.Errorf("redis touch session: %w", err)
	}
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}
	return rec, nil
}

// Destroy removes the session. Unknown ids are not an error.
func (s *RedisStore) Destroy(ctx context.Context, d domain.Domain, id string) error {
	if !d.Valid() {
		return ErrInvalidDomain
	}
	if err := s.client.Del(ctx, sessionKey(d, id)).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// SweepExpired scans each domain namespace and drops sessions not seen within
// maxAge. Each deletion runs under WATCH so a record touched mid-sweep survives.
func (s *RedisStore) SweepExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.opts.now().UTC().Add(-maxAge)
	removed := 0

	for _, d := range domain.Domains() {
		iter := s.client.Scan(ctx, 0, keyPrefix+d.String()+":*", scanCount).Iterator()
		for iter.Next(ctx) {
			deleted, err := s.sweepKey(ctx, iter.Val(), cutoff)
			if err != nil {
				return removed, err
			}
			if deleted {
				removed++
			}
		}
		if err := iter.Err(); err != nil {
			return removed, fmt.Errorf("redis scan sessions: %w", err)
		}
	}
	return removed, nil
}

func (s *RedisStore) sweepKey(ctx context.Context, key string, cutoff time.Time) (bool, error) {
	deleted := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		rec, err := s.load(ctx, tx, key)
		switch {
		case errors.Is(err, ErrSessionNotFound):
			return nil
		case err != nil && !errors.Is(err, errCorruptSession):
			return err
		case err == nil && !rec.LastSeenAt.Before(cutoff):
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sweep %s: %w", key, err)
	}
	return deleted, nil
}

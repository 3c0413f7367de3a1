// Package acpstore persists agentic checkout sessions.
package acpstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phenrril/printshop/internal/domain"
)

// DefaultTTL is how long a session is kept after its last write. Expiry of
// the session itself is decided by ExpiresAt, not by this TTL.
const DefaultTTL = 24 * time.Hour

type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "printshop"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: DefaultTTL}
}

func (s *RedisStore) key(id string) string { return s.prefix + ":acp:session:" + id }

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.ACPSession, error) {
	b, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("acpstore: get %s: %w", id, err)
	}
	var sess domain.ACPSession
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("acpstore: decode %s: %w", id, err)
	}
	return &sess, nil
}

func (s *RedisStore) Put(ctx context.Context, sess *domain.ACPSession) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(sess.ID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("acpstore: put %s: %w", sess.ID, err)
	}
	return nil
}

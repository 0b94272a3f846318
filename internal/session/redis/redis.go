// Package redis stores cart sessions in Redis. Each session is one hash
// keyed cart_session:{sessionID}; every write pushes its expiry forward so a
// whole session ages out together.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mahmudulhsn/shopping-cart/internal/session"
	"github.com/mahmudulhsn/shopping-cart/pkg/database"
)

const keyPrefix = "cart_session:"

// statement renders a command for span attributes. The session id is
// replaced by a placeholder so it never reaches trace storage.
func statement(cmd, field string) string {
	return cmd + " " + keyPrefix + "? " + field
}

// Backend implements session.Backend on a go-redis client.
type Backend struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a backend whose sessions expire ttl after their last write.
// A zero ttl disables expiry.
func New(client *redis.Client, ttl time.Duration) *Backend {
	return &Backend{client: client, ttl: ttl}
}

func (b *Backend) Name() string { return "redis" }

func (b *Backend) Open(sessionID string) session.Store {
	return &store{client: b.client, ttl: b.ttl, hash: keyPrefix + sessionID}
}

// Ping checks connectivity for readiness probes.
func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

type store struct {
	client *redis.Client
	ttl    time.Duration
	hash   string
}

func (s *store) Get(ctx context.Context, key string, dst any) (found bool, err error) {
	ctx, end := database.TraceCommand(ctx, "redis", "HGET", statement("HGET", key))
	defer func() { end(err) }()

	raw, err := s.client.HGet(ctx, s.hash, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return true, session.Decode(raw, dst)
}

func (s *store) Put(ctx context.Context, key string, value any) (err error) {
	raw, err := session.Encode(value)
	if err != nil {
		return err
	}

	ctx, end := database.TraceCommand(ctx, "redis", "HSET", statement("HSET", key))
	defer func() { end(err) }()

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.hash, key, raw)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.hash, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

func (s *store) Forget(ctx context.Context, key string) (err error) {
	ctx, end := database.TraceCommand(ctx, "redis", "HDEL", statement("HDEL", key))
	defer func() { end(err) }()

	if err = s.client.HDel(ctx, s.hash, key).Err(); err != nil {
		return fmt.Errorf("redis forget %s: %w", key, err)
	}
	return nil
}

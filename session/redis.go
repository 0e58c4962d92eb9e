package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"voiceagent/core"
)

const (
	// Redis key prefix for sessions
	sessionKeyPrefix = "session:"
	// WATCH retries before an append gives up with ErrVersionConflict.
	maxAppendAttempts = 5
)

// RedisStore keeps each session as one JSON value with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// GetOrCreate implements Store.
func (s *RedisStore) GetOrCreate(ctx context.Context, key string) (*Session, error) {
	sess, err := s.Get(ctx, key)
	if err != nil || sess != nil {
		return sess, err
	}
	sess = newSession(key)
	val, err := sonic.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("session: marshal: %w", err)
	}
	created, err := s.client.SetNX(ctx, s.key(key), val, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("session: redis setnx: %w", err)
	}
	if !created {
		// Lost a creation race; read what the winner stored.
		return s.Get(ctx, key)
	}
	return sess, nil
}

// Get implements Store. Refreshes the TTL on every read.
func (s *RedisStore) Get(ctx context.Context, key string) (*Session, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get: %w", err)
	}

	var sess Session
	if err := sonic.Unmarshal(val, &sess); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	_ = s.client.Expire(ctx, s.key(key), s.ttl).Err()
	return &sess, nil
}

// AppendTurn implements Store using WATCH/MULTI/EXEC.
func (s *RedisStore) AppendTurn(ctx context.Context, key string, turn core.Turn) error {
	if err := validateKey(key); err != nil {
		return err
	}
	rkey := s.key(key)

	txf := func(tx *redis.Tx) error {
		sess := newSession(key)
		val, err := tx.Get(ctx, rkey).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if err := sonic.Unmarshal(val, sess); err != nil {
				return err
			}
		}

		sess.Turns = append(sess.Turns, turn)
		sess.Version++
		sess.UpdatedAt = time.Now().UTC()

		newVal, err := sonic.Marshal(sess)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rkey, newVal, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxAppendAttempts; i++ {
		err := s.client.Watch(ctx, txf, rkey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("session: redis append: %w", err)
		}
		return nil
	}
	return ErrVersionConflict
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, key string) (string, error) {
	return NewKey(), nil
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// key constructs the Redis key for a session key.
func (s *RedisStore) key(key string) string {
	return sessionKeyPrefix + key
}

package audiostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const clipKeyPrefix = "audio:"

// RedisStore keeps clips in a redis hash per id so that several API
// instances can serve each other's audio.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultClipTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, data []byte, mimeType string) (string, error) {
	id := NewID()
	if err := s.write(ctx, id, data, mimeType, s.ttl); err != nil {
		return "", err
	}
	return id, nil
}

// Pin implements Store.
func (s *RedisStore) Pin(ctx context.Context, id string, data []byte, mimeType string) error {
	return s.write(ctx, id, data, mimeType, 0)
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*Clip, error) {
	vals, err := s.client.HGetAll(ctx, clipKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("audiostore: redis get: %w", err)
	}
	data, ok := vals["data"]
	if !ok {
		return nil, ErrNotFound
	}
	clip := &Clip{ID: id, Data: []byte(data), MimeType: vals["mime"]}
	if ts, err := time.Parse(time.RFC3339Nano, vals["created_at"]); err == nil {
		clip.CreatedAt = ts
	}
	return clip, nil
}

func (s *RedisStore) write(ctx context.Context, id string, data []byte, mimeType string, ttl time.Duration) error {
	if id == "" {
		return errors.New("audiostore: empty id")
	}
	key := clipKeyPrefix + id
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"data", data,
			"mime", mimeType,
			"created_at", time.Now().UTC().Format(time.RFC3339Nano),
		)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("audiostore: redis write: %w", err)
	}
	return nil
}

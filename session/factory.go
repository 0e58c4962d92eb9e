package session

import (
	"context"
	"fmt"
	"time"
)

// StoreType represents the type of session store.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeRedis    StoreType = "redis"
	StoreTypePostgres StoreType = "postgres"
)

const (
	defaultTTL         = 24 * time.Hour
	defaultMaxSessions = 10000
)

// NewStore creates a Store of the given type.
// Redis requires WithRedisClient, postgres requires WithPostgresPool.
func NewStore(ctx context.Context, storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{}
	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeMemory, "":
		max := config.maxSessions
		if max <= 0 {
			max = defaultMaxSessions
		}
		return NewMemoryStore(max), nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewRedisStore(config.redisClient, config.ttl), nil

	case StoreTypePostgres:
		if config.postgresPool == nil {
			return nil, ErrInvalidConfig
		}
		if config.migrate {
			if err := Migrate(ctx, config.postgresPool); err != nil {
				return nil, fmt.Errorf("session: migrate: %w", err)
			}
		}
		return NewPostgresStore(config.postgresPool), nil

	default:
		return nil, ErrInvalidStoreType
	}
}

package session

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// StoreOption is a functional option for configuring a session store.
type StoreOption func(*storeConfig)

// storeConfig holds configuration for session stores.
type storeConfig struct {
	redisClient  *redis.Client
	ttl          time.Duration
	maxSessions  int
	postgresPool *pgxpool.Pool
	migrate      bool
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithTTL sets how long an idle session is kept (redis only).
func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.ttl = ttl
	}
}

// WithMaxSessions bounds the memory store; least recently used sessions are evicted.
func WithMaxSessions(n int) StoreOption {
	return func(c *storeConfig) {
		c.maxSessions = n
	}
}

// WithPostgresPool sets the connection pool for the postgres store.
func WithPostgresPool(pool *pgxpool.Pool) StoreOption {
	return func(c *storeConfig) {
		c.postgresPool = pool
	}
}

// WithMigrations runs the embedded schema migrations when the postgres store is built.
func WithMigrations(enabled bool) StoreOption {
	return func(c *storeConfig) {
		c.migrate = enabled
	}
}

package factories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"voiceagent/audiostore"
	"voiceagent/core"
	"voiceagent/session"
)

// SessionStoreConfig selects the conversation history driver.
type SessionStoreConfig struct {
	Driver session.StoreType `json:"driver"`
	// MaxSessions bounds the memory driver.
	MaxSessions int `json:"max_sessions,omitempty"`
	// TTL is how long an idle redis session is kept.
	TTL Duration `json:"ttl,omitempty"`
	// Migrate applies the embedded schema on startup (postgres).
	Migrate bool `json:"migrate"`
}

// AudioStoreConfig selects where synthesized clips are kept until played.
type AudioStoreConfig struct {
	Driver   string   `json:"driver"` // "memory" or "redis"
	MaxClips int      `json:"max_clips,omitempty"`
	TTL      Duration `json:"ttl,omitempty"`
}

// StorageConfig holds both stores. Connection strings come from the
// environment (REDIS_URL, DATABASE_URL) rather than settings.json.
type StorageConfig struct {
	Sessions SessionStoreConfig `json:"sessions"`
	Audio    AudioStoreConfig   `json:"audio"`

	RedisURL    string `json:"-"`
	DatabaseURL string `json:"-"`
}

func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Sessions: SessionStoreConfig{Driver: session.StoreTypeMemory, Migrate: true},
		Audio:    AudioStoreConfig{Driver: "memory", MaxClips: 512},
	}
}

func (c StorageConfig) Validate() error {
	switch c.Sessions.Driver {
	case session.StoreTypeMemory, session.StoreTypeRedis, session.StoreTypePostgres, "":
	default:
		return fmt.Errorf("settings: unknown session driver %q", c.Sessions.Driver)
	}
	switch c.Audio.Driver {
	case "memory", "redis", "":
	default:
		return fmt.Errorf("settings: unknown audio driver %q", c.Audio.Driver)
	}
	return nil
}

// Storage is the opened session and audio stores plus the connections
// behind them.
type Storage struct {
	Sessions session.Store
	Audio    audiostore.Store

	redis *redis.Client
	pool  *pgxpool.Pool
	extra []func() error
}

// Close releases the stores and their connections. A session store closes
// the connection it was built on, so only connections it does not own are
// closed here.
func (s *Storage) Close() error {
	var errs []error
	if s.Sessions != nil {
		errs = append(errs, s.Sessions.Close())
		for _, closeFn := range s.extra {
			errs = append(errs, closeFn())
		}
		return errors.Join(errs...)
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return errors.Join(errs...)
}

// OpenStorage connects the configured drivers. A single redis client is
// shared when both stores use redis.
func OpenStorage(ctx context.Context, c StorageConfig, logger *core.Logger) (*Storage, error) {
	s := &Storage{}
	needRedis := c.Sessions.Driver == session.StoreTypeRedis || c.Audio.Driver == "redis"
	if needRedis {
		if c.RedisURL == "" {
			return nil, errors.New("storage: REDIS_URL is required for the redis driver")
		}
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("storage: parse REDIS_URL: %w", err)
		}
		s.redis = redis.NewClient(opts)
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("storage: redis ping: %w", err)
		}
	}

	opts := []session.StoreOption{
		session.WithMaxSessions(c.Sessions.MaxSessions),
		session.WithTTL(c.Sessions.TTL.Std()),
		session.WithMigrations(c.Sessions.Migrate),
	}
	switch c.Sessions.Driver {
	case session.StoreTypeRedis:
		opts = append(opts, session.WithRedisClient(s.redis))
	case session.StoreTypePostgres:
		if c.DatabaseURL == "" {
			s.Close()
			return nil, errors.New("storage: DATABASE_URL is required for the postgres driver")
		}
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("storage: connect postgres: %w", err)
		}
		s.pool = pool
		opts = append(opts, session.WithPostgresPool(pool))
	}

	sessions, err := session.NewStore(ctx, c.Sessions.Driver, opts...)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}
	s.Sessions = sessions

	if c.Audio.Driver == "redis" {
		// The audio store shares the session store's client when both use
		// redis; otherwise it owns it.
		if c.Sessions.Driver != session.StoreTypeRedis {
			s.extra = append(s.extra, s.redis.Close)
		}
		s.Audio = audiostore.NewRedisStore(s.redis, c.Audio.TTL.Std())
	} else {
		s.Audio = audiostore.NewMemoryStore(c.Audio.MaxClips, c.Audio.TTL.Std())
	}

	logger.With(map[string]any{
		"sessions": string(c.Sessions.Driver),
		"audio":    c.Audio.Driver,
	}).Info("storage ready")
	return s, nil
}

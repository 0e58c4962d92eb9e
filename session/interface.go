package session

import (
	"context"
	"errors"
	"time"

	"voiceagent/core"
)

var (
	ErrNotFound         = errors.New("session: not found")
	ErrEmptyKey         = errors.New("session: empty key")
	ErrVersionConflict  = errors.New("session: version conflict")
	ErrInvalidConfig    = errors.New("session: invalid store config")
	ErrInvalidStoreType = errors.New("session: invalid store type")
)

// Session is a conversation: an append-only list of turns under one key.
type Session struct {
	Key       string      `json:"key"`
	Turns     []core.Turn `json:"turns"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Version   int64       `json:"version"` // incremented on every append
}

// Store persists sessions. Implementations must be safe for concurrent use;
// callers still serialize whole turns per key with a KeyedLocker.
type Store interface {
	// GetOrCreate returns the session for key, creating an empty one when
	// the key has never been seen.
	GetOrCreate(ctx context.Context, key string) (*Session, error)

	// Get returns nil (not an error) for unknown keys.
	Get(ctx context.Context, key string) (*Session, error)

	// AppendTurn adds turn at the end of the session's history, creating
	// the session if needed.
	AppendTurn(ctx context.Context, key string, turn core.Turn) error

	// Reset abandons key and returns a fresh one. Stored history under the
	// old key is left to expire.
	Reset(ctx context.Context, key string) (string, error)

	Ping(ctx context.Context) error
	Close() error
}

func newSession(key string) *Session {
	now := time.Now().UTC()
	return &Session{
		Key:       key,
		Turns:     []core.Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// clone copies the turn slice so callers can't mutate stored history.
func (s *Session) clone() *Session {
	c := *s
	c.Turns = append(make([]core.Turn, 0, len(s.Turns)), s.Turns...)
	return &c
}

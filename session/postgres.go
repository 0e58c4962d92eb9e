package session

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"voiceagent/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

// PostgresStore keeps sessions in two tables; turn order is the per-session
// version number assigned under the session row lock.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const (
	insertSessionSQL = `INSERT INTO sessions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`
	selectSessionSQL = `SELECT key, version, created_at, updated_at FROM sessions WHERE key = $1`
	selectTurnsSQL   = `SELECT user_text, assistant_text, audio_url, audio_mime, audio_fallback, created_at
		FROM session_turns WHERE session_key = $1 ORDER BY seq`
	bumpVersionSQL = `UPDATE sessions SET version = version + 1, updated_at = now()
		WHERE key = $1 RETURNING version`
	insertTurnSQL = `INSERT INTO session_turns
		(session_key, seq, user_text, assistant_text, audio_url, audio_mime, audio_fallback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
)

// GetOrCreate implements Store.
func (s *PostgresStore) GetOrCreate(ctx context.Context, key string) (*Session, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if _, err := s.pool.Exec(ctx, insertSessionSQL, key); err != nil {
		return nil, fmt.Errorf("session: postgres insert: %w", err)
	}
	sess, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, key string) (*Session, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	var sess Session
	err := s.pool.QueryRow(ctx, selectSessionSQL, key).
		Scan(&sess.Key, &sess.Version, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: postgres get: %w", err)
	}

	rows, err := s.pool.Query(ctx, selectTurnsSQL, key)
	if err != nil {
		return nil, fmt.Errorf("session: postgres turns: %w", err)
	}
	defer rows.Close()

	sess.Turns = []core.Turn{}
	for rows.Next() {
		var (
			t        core.Turn
			url      *string
			mime     *string
			fallback bool
		)
		if err := rows.Scan(&t.UserText, &t.AssistantText, &url, &mime, &fallback, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("session: postgres scan: %w", err)
		}
		if url != nil {
			t.AudioRef = &core.AudioRef{URL: *url, Fallback: fallback}
			if mime != nil {
				t.AudioRef.MimeType = *mime
			}
		}
		sess.Turns = append(sess.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: postgres rows: %w", err)
	}
	return &sess, nil
}

// AppendTurn implements Store.
func (s *PostgresStore) AppendTurn(ctx context.Context, key string, turn core.Turn) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertSessionSQL, key); err != nil {
			return fmt.Errorf("session: postgres insert: %w", err)
		}
		var seq int64
		if err := tx.QueryRow(ctx, bumpVersionSQL, key).Scan(&seq); err != nil {
			return fmt.Errorf("session: postgres bump version: %w", err)
		}

		var url, mime *string
		fallback := false
		if turn.AudioRef != nil {
			url, mime = &turn.AudioRef.URL, &turn.AudioRef.MimeType
			fallback = turn.AudioRef.Fallback
		}
		if _, err := tx.Exec(ctx, insertTurnSQL, key, seq, turn.UserText, turn.AssistantText,
			url, mime, fallback, turn.CreatedAt); err != nil {
			return fmt.Errorf("session: postgres insert turn: %w", err)
		}
		return nil
	})
}

// Reset implements Store.
func (s *PostgresStore) Reset(ctx context.Context, key string) (string, error) {
	return NewKey(), nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

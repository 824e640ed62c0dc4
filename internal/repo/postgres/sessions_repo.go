package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocoder89/shopadmin/internal/session"
)

const createSessionsTable = `
	CREATE TABLE IF NOT EXISTS auth_storage (
		key         TEXT PRIMARY KEY,
		data        JSONB NOT NULL,
		expires_at  TIMESTAMPTZ,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// SessionsRepo persists browser sessions in the auth_storage table. It satisfies session.Persister.
type SessionsRepo struct {
	pool *pgxpool.Pool
}

func NewSessionsRepo(pool *pgxpool.Pool) *SessionsRepo {
	return &SessionsRepo{pool: pool}
}

func (r *SessionsRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, createSessionsTable)
	return err
}

func (r *SessionsRepo) Load(ctx context.Context, key string) (session.Session, error) {
	var (
		data      []byte
		expiresAt *time.Time
	)

	err := r.pool.QueryRow(ctx, `
		SELECT data, expires_at
		FROM auth_storage
		WHERE key = $1
	`, key).Scan(&data, &expiresAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, err
	}

	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return session.Session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return s, nil
}

// Save upserts the entry. A zero ExpireAt is stored as NULL.
func (r *SessionsRepo) Save(ctx context.Context, key string, s session.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	var expiresAt *time.Time
	if !s.ExpireAt.IsZero() {
		t := s.ExpireAt.UTC()
		expiresAt = &t
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO auth_storage (key, data, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET data = EXCLUDED.data,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = NOW()
	`, key, data, expiresAt)

	return err
}

func (r *SessionsRepo) Delete(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM auth_storage WHERE key = $1`, key)
	return err
}

// PurgeExpired removes entries whose expiry passed more than grace ago.
func (r *SessionsRepo) PurgeExpired(ctx context.Context, grace time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM auth_storage
		WHERE expires_at IS NOT NULL AND expires_at < $1
	`, time.Now().UTC().Add(-grace))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *SessionsRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

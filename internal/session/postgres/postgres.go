// Package postgres stores cart sessions in the cart_sessions table, one row
// per (session, key).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mahmudulhsn/shopping-cart/internal/session"
	"github.com/mahmudulhsn/shopping-cart/pkg/database"
)

const (
	selectValueSQL = `SELECT value FROM cart_sessions WHERE session_id = $1 AND key = $2`

	upsertValueSQL = `INSERT INTO cart_sessions (session_id, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	deleteValueSQL = `DELETE FROM cart_sessions WHERE session_id = $1 AND key = $2`

	purgeSessionsSQL = `DELETE FROM cart_sessions WHERE session_id IN (
		SELECT session_id FROM cart_sessions GROUP BY session_id HAVING MAX(updated_at) < $1)`
)

// Backend implements session.Backend on PostgreSQL.
type Backend struct {
	db database.DBTX
}

// New creates a backend over db, which may be a pool or a transaction.
func New(db database.DBTX) *Backend {
	return &Backend{db: db}
}

func (b *Backend) Name() string { return "postgres" }

func (b *Backend) Open(sessionID string) session.Store {
	return &store{db: b.db, sessionID: sessionID}
}

// PurgeIdle deletes every session whose newest key was written before cutoff
// and returns the number of rows removed.
func (b *Backend) PurgeIdle(ctx context.Context, cutoff time.Time) (n int64, err error) {
	ctx, end := database.TraceQuery(ctx, "PurgeIdleSessions", purgeSessionsSQL)
	defer func() { end(err) }()

	tag, err := b.db.Exec(ctx, purgeSessionsSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge idle sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

type store struct {
	db        database.DBTX
	sessionID string
}

func (s *store) Get(ctx context.Context, key string, dst any) (found bool, err error) {
	ctx, end := database.TraceQuery(ctx, "GetSessionValue", selectValueSQL)
	defer func() { end(err) }()

	var raw []byte
	err = s.db.QueryRow(ctx, selectValueSQL, s.sessionID, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select session value %s: %w", key, err)
	}
	return true, session.Decode(raw, dst)
}

func (s *store) Put(ctx context.Context, key string, value any) (err error) {
	raw, err := session.Encode(value)
	if err != nil {
		return err
	}

	ctx, end := database.TraceQuery(ctx, "PutSessionValue", upsertValueSQL)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, upsertValueSQL, s.sessionID, key, raw); err != nil {
		return fmt.Errorf("upsert session value %s: %w", key, err)
	}
	return nil
}

func (s *store) Forget(ctx context.Context, key string) (err error) {
	ctx, end := database.TraceQuery(ctx, "ForgetSessionValue", deleteValueSQL)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, deleteValueSQL, s.sessionID, key); err != nil {
		return fmt.Errorf("delete session value %s: %w", key, err)
	}
	return nil
}

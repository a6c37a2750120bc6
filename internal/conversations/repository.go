package conversations

import (
	"context"
	"database/sql"
	"time"
)

// Repository is the persistence contract for conversation turns.
//
// The store is append-only: no Update or Delete methods by design.
// Every query is scoped by user_id; implementations must not leak turns
// across users.
type Repository interface {
	Insert(ctx context.Context, t Turn) error

	// ListRecent returns up to limit turns ordered created_at DESC.
	ListRecent(ctx context.Context, userID string, limit int) ([]Turn, error)

	// ExistsForCall reports whether any turn already carries callSID in its
	// metadata. Used to deduplicate derivation under at-least-once webhook
	// delivery.
	ExistsForCall(ctx context.Context, userID, callSID string) (bool, error)

	CountByUser(ctx context.Context, userID string) (int, error)
	CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// NOTE: This repository assumes the following table exists:
//
//   conversations (
//     id TEXT PRIMARY KEY,
//     user_id TEXT NOT NULL,
//     role TEXT NOT NULL,
//     message TEXT NOT NULL,
//     metadata JSONB NOT NULL DEFAULT '{}',
//     created_at TIMESTAMPTZ NOT NULL
//   )
//   INDEX on (user_id, created_at DESC)
//
// A partial unique index on (user_id, (metadata->>'call_sid')) WHERE
// metadata ? 'call_sid' closes the check-then-insert race for derived turns;
// see ExistsForCall.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Insert(ctx context.Context, t Turn) error {
	const q = `
INSERT INTO conversations (id, user_id, role, message, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
	_, err := r.db.ExecContext(ctx, q, t.ID, t.UserID, t.Role, t.Message, t.Metadata, t.CreatedAt)
	return err
}

func (r *PostgresRepo) ListRecent(ctx context.Context, userID string, limit int) ([]Turn, error) {
	const q = `
SELECT id, user_id, role, message, metadata, created_at
FROM conversations
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Message, &t.Metadata, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ExistsForCall(ctx context.Context, userID, callSID string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM conversations
  WHERE user_id = $1 AND metadata->>'call_sid' = $2
)
`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, userID, callSID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM conversations WHERE user_id = $1`
	var n int
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresRepo) CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM conversations WHERE user_id = $1 AND created_at >= $2`
	var n int
	if err := r.db.QueryRowContext(ctx, q, userID, since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

package anomaly

import (
	"context"
	"database/sql"
)

// NOTE: This repository assumes the following table exists:
//
//   ingest_anomalies (
//     id TEXT PRIMARY KEY,
//     type TEXT NOT NULL,
//     call_sid TEXT NOT NULL,
//     user_id TEXT,
//     from_status TEXT,
//     to_status TEXT,
//     message TEXT,
//     created_at TIMESTAMPTZ NOT NULL
//   )
//
// INSERT-only; retention via time-based cleanup jobs if needed.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO ingest_anomalies (
  id, type, call_sid, user_id, from_status, to_status, message, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.CallSID,
		e.UserID,
		e.FromStatus,
		e.ToStatus,
		e.Message,
		e.CreatedAt,
	)
	return err
}

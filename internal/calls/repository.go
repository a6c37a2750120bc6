package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"voiceai-platform/pkg/utils"
)

// Repository is the persistence contract for call records.
//
// Reconcile must serialize concurrent calls for the same call_sid: the apply
// callback observes the current row (nil if absent) and returns the desired
// row, and the implementation writes it atomically with respect to other
// Reconcile calls for that call_sid. Different call_sids must not contend.
type Repository interface {
	FindBySID(ctx context.Context, callSID string) (CallRecord, bool, error)
	Reconcile(ctx context.Context, callSID string, apply func(cur *CallRecord) (CallRecord, error)) (CallRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]CallRecord, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

// NOTE: This repository assumes the following table exists:
//
//   call_logs (
//     call_sid TEXT PRIMARY KEY,
//     user_id TEXT,
//     phone_number TEXT,
//     status TEXT NOT NULL,
//     duration INT,
//     recording_url TEXT,
//     transcript TEXT,
//     metadata JSONB NOT NULL DEFAULT '{}',
//     created_at TIMESTAMPTZ NOT NULL,
//     updated_at TIMESTAMPTZ NOT NULL
//   )
//
// The PRIMARY KEY on call_sid enforces the one-row-per-call invariant.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const selectColumns = `call_sid, user_id, phone_number, status, duration, recording_url, transcript, metadata, created_at, updated_at`

func (r *PostgresRepo) FindBySID(ctx context.Context, callSID string) (CallRecord, bool, error) {
	const q = `
SELECT ` + selectColumns + `
FROM call_logs
WHERE call_sid = $1
`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, callSID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, false, nil
		}
		return CallRecord{}, false, err
	}
	return rec, true, nil
}

// Reconcile locks the call row (FOR UPDATE) so concurrent events for the same
// call_sid apply one at a time. A fresh call_sid may race on first insert;
// ON CONFLICT DO NOTHING plus one retry resolves the loser onto the update path.
func (r *PostgresRepo) Reconcile(ctx context.Context, callSID string, apply func(cur *CallRecord) (CallRecord, error)) (CallRecord, error) {
	var out CallRecord
	for attempt := 0; attempt < 2; attempt++ {
		inserted := true
		err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
			cur, found, err := lockBySID(ctx, tx, callSID)
			if err != nil {
				return err
			}

			var curPtr *CallRecord
			if found {
				curPtr = &cur
			}
			next, err := apply(curPtr)
			if err != nil {
				return err
			}

			if found {
				if err := updateRecord(ctx, tx, next); err != nil {
					return err
				}
				out = next
				return nil
			}

			ok, err := insertRecord(ctx, tx, next)
			if err != nil {
				return err
			}
			if !ok {
				// Lost the first-insert race; retry on the update path.
				inserted = false
				return nil
			}
			out = next
			return nil
		})
		if err != nil {
			return CallRecord{}, err
		}
		if inserted {
			return out, nil
		}
	}
	return CallRecord{}, fmt.Errorf("calls: reconcile retry exhausted for %s", callSID)
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string, limit int) ([]CallRecord, error) {
	const q = `
SELECT ` + selectColumns + `
FROM call_logs
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []CallRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (r *PostgresRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM call_logs WHERE user_id = $1`
	var n int
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func lockBySID(ctx context.Context, tx *sql.Tx, callSID string) (CallRecord, bool, error) {
	const q = `
SELECT ` + selectColumns + `
FROM call_logs
WHERE call_sid = $1
FOR UPDATE
`
	rec, err := scanRecord(tx.QueryRowContext(ctx, q, callSID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, false, nil
		}
		return CallRecord{}, false, err
	}
	return rec, true, nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, rec CallRecord) (bool, error) {
	const q = `
INSERT INTO call_logs (
  call_sid, user_id, phone_number, status, duration, recording_url, transcript, metadata, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
ON CONFLICT (call_sid) DO NOTHING
`
	res, err := tx.ExecContext(ctx, q,
		rec.CallSID,
		nullStr(rec.UserID),
		nullStr(rec.PhoneNumber),
		rec.Status,
		rec.DurationSeconds,
		nullStr(rec.RecordingURL),
		nullStr(rec.Transcript),
		rec.Metadata,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func updateRecord(ctx context.Context, tx *sql.Tx, rec CallRecord) error {
	const q = `
UPDATE call_logs
SET user_id = $2,
    phone_number = $3,
    status = $4,
    duration = $5,
    recording_url = $6,
    transcript = $7,
    metadata = $8,
    updated_at = $9
WHERE call_sid = $1
`
	_, err := tx.ExecContext(ctx, q,
		rec.CallSID,
		nullStr(rec.UserID),
		nullStr(rec.PhoneNumber),
		rec.Status,
		rec.DurationSeconds,
		nullStr(rec.RecordingURL),
		nullStr(rec.Transcript),
		rec.Metadata,
		rec.UpdatedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (CallRecord, error) {
	var rec CallRecord
	var userID, phone, recording, transcript sql.NullString
	var duration sql.NullInt64
	if err := row.Scan(
		&rec.CallSID,
		&userID,
		&phone,
		&rec.Status,
		&duration,
		&recording,
		&transcript,
		&rec.Metadata,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return CallRecord{}, err
	}
	rec.UserID = userID.String
	rec.PhoneNumber = phone.String
	rec.RecordingURL = recording.String
	rec.Transcript = transcript.String
	if duration.Valid {
		d := int(duration.Int64)
		rec.DurationSeconds = &d
	}
	return rec, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package profiles

import (
	"context"
	"database/sql"
	"errors"
)

// Repository is the persistence contract for user profiles.
//
// Find returns (zero, false, nil) when no profile exists; absence is a valid
// state, not an error.
type Repository interface {
	Find(ctx context.Context, userID string) (Profile, bool, error)
	Upsert(ctx context.Context, p Profile) (Profile, error)
}

// NOTE: This repository assumes the following table exists:
//
//   user_profiles (
//     user_id TEXT PRIMARY KEY,
//     full_name TEXT,
//     phone_number TEXT,
//     voice_preferences JSONB NOT NULL DEFAULT '{}',
//     created_at TIMESTAMPTZ NOT NULL,
//     updated_at TIMESTAMPTZ NOT NULL
//   )

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Find(ctx context.Context, userID string) (Profile, bool, error) {
	const q = `
SELECT user_id, full_name, phone_number, voice_preferences, created_at, updated_at
FROM user_profiles
WHERE user_id = $1
`
	var p Profile
	var fullName, phone sql.NullString
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&p.UserID,
		&fullName,
		&phone,
		&p.VoicePreferences,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, false, nil
		}
		return Profile{}, false, err
	}
	p.FullName = fullName.String
	p.PhoneNumber = phone.String
	return p, true, nil
}

// Upsert replaces the profile wholesale, keyed on user_id.
func (r *PostgresRepo) Upsert(ctx context.Context, p Profile) (Profile, error) {
	const q = `
INSERT INTO user_profiles (user_id, full_name, phone_number, voice_preferences, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (user_id)
DO UPDATE SET full_name = EXCLUDED.full_name,
              phone_number = EXCLUDED.phone_number,
              voice_preferences = EXCLUDED.voice_preferences,
              updated_at = EXCLUDED.updated_at
RETURNING user_id, full_name, phone_number, voice_preferences, created_at, updated_at
`
	var out Profile
	var fullName, phone sql.NullString
	err := r.db.QueryRowContext(ctx, q,
		p.UserID,
		nullStr(p.FullName),
		nullStr(p.PhoneNumber),
		p.VoicePreferences,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(
		&out.UserID,
		&fullName,
		&phone,
		&out.VoicePreferences,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		return Profile{}, err
	}
	out.FullName = fullName.String
	out.PhoneNumber = phone.String
	return out, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

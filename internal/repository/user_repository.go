package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// UserRepository handles the locally stored per-user account flags.
// Profile data lives in the user service; only the blocked flag is kept
// here so the gate can consult it without a network call.
type UserRepository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool, log zerolog.Logger) *UserRepository {
	return &UserRepository{
		pool: pool,
		log:  log.With().Str("component", "user_repository").Logger(),
	}
}

// IsBlocked reports whether the account is blocked. An unknown user is
// not blocked.
func (r *UserRepository) IsBlocked(ctx context.Context, userID string) (bool, error) {
	var blocked bool
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(
			(SELECT is_blocked FROM users WHERE id = $1), FALSE)`, userID,
	).Scan(&blocked)
	return blocked, err
}

// SetBlocked upserts the blocked flag for a user.
func (r *UserRepository) SetBlocked(ctx context.Context, userID string, blocked bool) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, is_blocked) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET is_blocked = EXCLUDED.is_blocked`,
		userID, blocked)
	return err
}

package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/studkit/examcore/internal/gate"
	"github.com/studkit/examcore/internal/repository"
)

// UserService handles the locally held account flags. Profile reads and
// writes go straight to the remote user service from the handlers; only
// the blocked flag lives here.
type UserService struct {
	users   *repository.UserRepository
	blocked *gate.CachedBlockedStore
	log     zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users *repository.UserRepository, blocked *gate.CachedBlockedStore, log zerolog.Logger) *UserService {
	return &UserService{
		users:   users,
		blocked: blocked,
		log:     log.With().Str("component", "user_service").Logger(),
	}
}

// IsBlocked reports a user's blocked flag, bypassing the gate cache so
// administrative reads always see the stored value.
func (s *UserService) IsBlocked(ctx context.Context, userID string) (bool, error) {
	return s.users.IsBlocked(ctx, userID)
}

// SetBlocked writes a user's blocked flag and drops the cached copy so
// the gate sees the change on the next request.
func (s *UserService) SetBlocked(ctx context.Context, userID string, blocked bool) error {
	if err := s.users.SetBlocked(ctx, userID, blocked); err != nil {
		return fmt.Errorf("set blocked flag: %w", err)
	}
	s.blocked.Invalidate(ctx, userID)
	s.log.Info().Str("user_id", userID).Bool("blocked", blocked).Msg("blocked flag changed")
	return nil
}

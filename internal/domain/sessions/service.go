// Package sessions implements the token side of the authentication
// lifecycle: issuing access/refresh token pairs, tracking the set of live
// refresh tokens per email (one entry per device), and minting fresh access
// tokens from current user state.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/get-me-through/server/internal/auth"
	"github.com/get-me-through/server/internal/domain/users"
	"github.com/rs/zerolog"
)

var ErrNoSession = errors.New("no active session")

// Repository persists the per-email refresh-token set. A token string
// present in the set is redeemable exactly until it is removed.
type Repository interface {
	Append(ctx context.Context, email, token string) error
	Remove(ctx context.Context, email, token string) error
	Contains(ctx context.Context, email, token string) (bool, error)
}

// UserDirectory re-reads user state so refreshed access tokens reflect
// role or verification changes made since login.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*users.User, error)
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type Service struct {
	access  *auth.TokenManager
	refresh *auth.TokenManager
	repo    Repository
	users   UserDirectory
	logger  zerolog.Logger
}

func NewService(access, refresh *auth.TokenManager, repo Repository, users UserDirectory, logger zerolog.Logger) *Service {
	return &Service{
		access:  access,
		refresh: refresh,
		repo:    repo,
		users:   users,
		logger:  logger.With().Str("component", "sessions").Logger(),
	}
}

func identityFor(user *users.User) auth.Identity {
	return auth.Identity{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		Verified: user.Verified,
	}
}

// Issue signs a new access/refresh token pair and appends the refresh token
// to the email's set. Existing tokens are untouched so other devices keep
// their sessions.
func (s *Service) Issue(ctx context.Context, user *users.User) (TokenPair, error) {
	identity := identityFor(user)

	accessToken, err := s.access.Sign(identity)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := s.refresh.Sign(identity)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.repo.Append(ctx, user.Email, refreshToken); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(s.access.Expiry()),
	}, nil
}

// VerifyAccess returns the caller identity or nil. Absence of identity
// means unauthenticated; the endpoint decides whether to reject.
func (s *Service) VerifyAccess(token string) *auth.Identity {
	identity, err := s.access.Verify(token)
	if err != nil {
		return nil
	}
	return identity
}

// VerifyRefresh is VerifyAccess against the refresh secret.
func (s *Service) VerifyRefresh(token string) *auth.Identity {
	identity, err := s.refresh.Verify(token)
	if err != nil {
		return nil
	}
	return identity
}

// RefreshAccess mints a fresh access token. The presented refresh token
// must still be a member of the email's stored set, so a token revoked by
// logout can no longer mint. User state is re-read so role and verified
// changes take effect on the next refresh.
func (s *Service) RefreshAccess(ctx context.Context, identity *auth.Identity, presentedToken string) (string, time.Time, error) {
	if identity == nil {
		return "", time.Time{}, ErrNoSession
	}

	member, err := s.repo.Contains(ctx, identity.Email, presentedToken)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("check refresh token: %w", err)
	}
	if !member {
		return "", time.Time{}, ErrNoSession
	}

	user, err := s.users.GetByEmail(ctx, identity.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return "", time.Time{}, ErrNoSession
		}
		return "", time.Time{}, err
	}
	if user.Deleted {
		return "", time.Time{}, ErrNoSession
	}

	token, err := s.access.Sign(identityFor(user))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, time.Now().Add(s.access.Expiry()), nil
}

// Revoke removes exactly one refresh token string from the email's set.
// An empty set is left in place; callers treat empty and missing alike.
func (s *Service) Revoke(ctx context.Context, email, token string) error {
	return s.repo.Remove(ctx, email, token)
}

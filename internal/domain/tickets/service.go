// Package tickets records support requests submitted through the contact
// form and lets admins work through them.
package tickets

import (
	"context"
	"errors"
	"time"

	"github.com/get-me-through/server/internal/auth"
	"github.com/get-me-through/server/internal/domain/ids"
	"github.com/get-me-through/server/internal/sanitize"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound  = errors.New("ticket not found")
	ErrForbidden = errors.New("admin role required")
)

type Ticket struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"createdAt"`
}

type Repository interface {
	Create(ctx context.Context, ticket *Ticket) error
	GetByID(ctx context.Context, id string) (*Ticket, error)
	List(ctx context.Context, resolved *bool, limit, offset int) ([]*Ticket, int, error)
	ListByEmail(ctx context.Context, email string) ([]*Ticket, error)
	SetResolved(ctx context.Context, id string, resolved bool) error
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "tickets").Logger(),
	}
}

// Open files a new ticket. The contact form is public, no identity needed.
func (s *Service) Open(ctx context.Context, name, email, subject, message string) (*Ticket, error) {
	ticket := &Ticket{
		ID:      ids.MustNewULID(),
		Name:    sanitize.Text(name),
		Email:   email,
		Subject: sanitize.Text(subject),
		Message: sanitize.HTML(message),
	}
	if err := s.repo.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.logger.Info().Str("ticket_id", ticket.ID).Str("email", email).Msg("ticket opened")
	return ticket, nil
}

func (s *Service) Get(ctx context.Context, actor *auth.Identity, id string) (*Ticket, error) {
	if actor == nil || !auth.IsAdmin(actor.Role) {
		return nil, ErrForbidden
	}
	return s.repo.GetByID(ctx, id)
}

// List pages through tickets, optionally filtered by resolution state.
func (s *Service) List(ctx context.Context, actor *auth.Identity, resolved *bool, limit, offset int) ([]*Ticket, int, error) {
	if actor == nil || !auth.IsAdmin(actor.Role) {
		return nil, 0, ErrForbidden
	}
	return s.repo.List(ctx, resolved, limit, offset)
}

// Mine returns the tickets filed under the caller's email address.
func (s *Service) Mine(ctx context.Context, actor *auth.Identity) ([]*Ticket, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	return s.repo.ListByEmail(ctx, actor.Email)
}

func (s *Service) Resolve(ctx context.Context, actor *auth.Identity, id string, resolved bool) error {
	if actor == nil || !auth.IsAdmin(actor.Role) {
		return ErrForbidden
	}
	if err := s.repo.SetResolved(ctx, id, resolved); err != nil {
		return err
	}
	s.logger.Info().Str("ticket_id", id).Bool("resolved", resolved).Msg("ticket resolution updated")
	return nil
}

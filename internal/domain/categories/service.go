// Package categories manages the flat list of event categories.
package categories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/get-me-through/server/internal/auth"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound  = errors.New("category not found")
	ErrDuplicate = errors.New("category already exists")
	ErrForbidden = errors.New("admin role required")
)

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Repository interface {
	Create(ctx context.Context, name string) (*Category, error)
	GetByID(ctx context.Context, id int64) (*Category, error)
	List(ctx context.Context) ([]*Category, error)
	Delete(ctx context.Context, id int64) error
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "categories").Logger(),
	}
}

// Create adds a category, admin only. Names are stored trimmed and
// compared case-insensitively by the repository.
func (s *Service) Create(ctx context.Context, actor *auth.Identity, name string) (*Category, error) {
	if actor == nil || !auth.IsAdmin(actor.Role) {
		return nil, ErrForbidden
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("category name is empty")
	}
	category, err := s.repo.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("category_id", category.ID).Str("name", category.Name).Msg("category created")
	return category, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Category, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Category, error) {
	return s.repo.List(ctx)
}

func (s *Service) Delete(ctx context.Context, actor *auth.Identity, id int64) error {
	if actor == nil || !auth.IsAdmin(actor.Role) {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

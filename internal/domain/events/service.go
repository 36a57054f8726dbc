// Package events holds the event catalog: CRUD, listing, and the capacity
// reservation primitives the registration and payment flows build on.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/get-me-through/server/internal/auth"
	"github.com/get-me-through/server/internal/domain/ids"
	"github.com/get-me-through/server/internal/sanitize"
	"github.com/rs/zerolog"
)

const (
	TypeOpen   = "open"
	TypeClosed = "closed"
)

var (
	ErrNotFound  = errors.New("event not found")
	ErrForbidden = errors.New("not allowed to manage this event")
	ErrFull      = errors.New("event is at participation limit")
)

// Event is a single catalog entry. Price is in minor currency units; a
// Free event ignores Price entirely.
type Event struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	CategoryID         int64     `json:"categoryId"`
	CategoryName       string    `json:"category"`
	Location           string    `json:"location"`
	StartTime          time.Time `json:"startTime"`
	EndTime            time.Time `json:"endTime"`
	URL                string    `json:"url,omitempty"`
	ImageUploaded      bool      `json:"imageUploaded"`
	OwnerID            string    `json:"ownerId"`
	OwnerName          string    `json:"ownerName"`
	Price              int64     `json:"price"`
	Free               bool      `json:"free"`
	Type               string    `json:"type"`
	ParticipationLimit int       `json:"participationLimit"`
	ParticipantsCount  int       `json:"participantsCount"`
	AttendanceRequired bool      `json:"attendanceRequired"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// HasSpace reports whether the event can admit one more participant. A
// zero ParticipationLimit means unbounded.
func (e *Event) HasSpace() bool {
	return e.ParticipationLimit == 0 || e.ParticipantsCount < e.ParticipationLimit
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	Type       string
	CategoryID int64
	OwnerID    string
	Free       *bool
}

type Repository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	Update(ctx context.Context, event *Event) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Event, int, error)
	ListOpen(ctx context.Context) ([]*Event, error)

	// ReserveSlot atomically claims one participant slot and reports
	// whether it succeeded; it never oversubscribes the limit.
	ReserveSlot(ctx context.Context, id string) (bool, error)
	ReleaseSlot(ctx context.Context, id string) error
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// CreateInput carries the writable fields for a new event.
type CreateInput struct {
	Name               string
	Description        string
	CategoryID         int64
	Location           string
	StartTime          time.Time
	EndTime            time.Time
	URL                string
	Price              int64
	Free               bool
	Type               string
	ParticipationLimit int
	AttendanceRequired bool
}

func (s *Service) Create(ctx context.Context, actor *auth.Identity, ownerName string, in CreateInput) (*Event, error) {
	if actor == nil {
		return nil, ErrForbidden
	}

	eventType := strings.ToLower(in.Type)
	if eventType != TypeOpen && eventType != TypeClosed {
		eventType = TypeOpen
	}
	price := in.Price
	if in.Free {
		price = 0
	}

	event := &Event{
		ID:                 ids.MustNewULID(),
		Name:               sanitize.Text(in.Name),
		Description:        sanitize.HTML(in.Description),
		CategoryID:         in.CategoryID,
		Location:           sanitize.Text(in.Location),
		StartTime:          in.StartTime,
		EndTime:            in.EndTime,
		URL:                in.URL,
		OwnerID:            actor.UserID,
		OwnerName:          ownerName,
		Price:              price,
		Free:               in.Free,
		Type:               eventType,
		ParticipationLimit: in.ParticipationLimit,
		AttendanceRequired: in.AttendanceRequired,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.logger.Info().Str("event_id", event.ID).Str("owner_id", event.OwnerID).Msg("event created")
	return event, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateInput carries the mutable fields; nil pointers are left unchanged.
type UpdateInput struct {
	Name               *string
	Description        *string
	CategoryID         *int64
	Location           *string
	StartTime          *time.Time
	EndTime            *time.Time
	URL                *string
	Price              *int64
	Free               *bool
	Type               *string
	ParticipationLimit *int
	AttendanceRequired *bool
	ImageUploaded      *bool
}

func (s *Service) Update(ctx context.Context, actor *auth.Identity, id string, in UpdateInput) (*Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanManage(actor, event.OwnerID) {
		return nil, ErrForbidden
	}

	if in.Name != nil {
		event.Name = sanitize.Text(*in.Name)
	}
	if in.Description != nil {
		event.Description = sanitize.HTML(*in.Description)
	}
	if in.CategoryID != nil {
		event.CategoryID = *in.CategoryID
	}
	if in.Location != nil {
		event.Location = sanitize.Text(*in.Location)
	}
	if in.StartTime != nil {
		event.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		event.EndTime = *in.EndTime
	}
	if in.URL != nil {
		event.URL = *in.URL
	}
	if in.Free != nil {
		event.Free = *in.Free
	}
	if in.Price != nil {
		event.Price = *in.Price
	}
	if event.Free {
		event.Price = 0
	}
	if in.Type != nil {
		eventType := strings.ToLower(*in.Type)
		if eventType == TypeOpen || eventType == TypeClosed {
			event.Type = eventType
		}
	}
	if in.ParticipationLimit != nil {
		event.ParticipationLimit = *in.ParticipationLimit
	}
	if in.AttendanceRequired != nil {
		event.AttendanceRequired = *in.AttendanceRequired
	}
	if in.ImageUploaded != nil {
		event.ImageUploaded = *in.ImageUploaded
	}

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

func (s *Service) Delete(ctx context.Context, actor *auth.Identity, id string) error {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CanManage(actor, event.OwnerID) {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	s.logger.Info().Str("event_id", id).Str("actor_id", actor.UserID).Msg("event deleted")
	return nil
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]*Event, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// ListOpen returns every open event, the corpus the search layer ranks.
func (s *Service) ListOpen(ctx context.Context) ([]*Event, error) {
	return s.repo.ListOpen(ctx)
}

// ReserveSlot claims one participant slot. ErrFull when the limit is
// already reached.
func (s *Service) ReserveSlot(ctx context.Context, id string) error {
	ok, err := s.repo.ReserveSlot(ctx, id)
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	if !ok {
		return ErrFull
	}
	return nil
}

func (s *Service) ReleaseSlot(ctx context.Context, id string) error {
	return s.repo.ReleaseSlot(ctx, id)
}

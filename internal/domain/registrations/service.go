// Package registrations tracks which users hold a place at which event
// and whether they showed up. For priced events a registration only
// counts once its payment is captured; the pending window in between is
// owned by the payment workflow.
package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/get-me-through/server/internal/auth"
	"github.com/get-me-through/server/internal/domain/events"
	"github.com/get-me-through/server/internal/domain/ids"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound          = errors.New("registration not found")
	ErrAlreadyRegistered = errors.New("already registered for this event")
	ErrPaymentRequired   = errors.New("event requires payment to register")
	ErrAttendanceOff     = errors.New("event does not track attendance")
)

// Status is the effective standing of a user against an event.
type Status string

const (
	StatusNone    Status = "none"
	StatusPending Status = "pending-payment"
	StatusValid   Status = "valid"
)

type Registration struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	EventID   string    `json:"eventId"`
	Attended  bool      `json:"attended"`
	CreatedAt time.Time `json:"createdAt"`
}

// RegistrationView is a registration with its standing resolved, the
// shape users see when listing their own registrations.
type RegistrationView struct {
	Registration
	Status Status `json:"status"`
}

// Registrant is the participant projection owners see on the roster.
type Registrant struct {
	RegistrationID string    `json:"registrationId"`
	UserID         string    `json:"userId"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Mobile         string    `json:"mobile"`
	Verified       bool      `json:"verified"`
	FaceVerified   bool      `json:"faceVerified"`
	Attended       bool      `json:"attended"`
	RegisteredAt   time.Time `json:"registeredAt"`
}

type Repository interface {
	Create(ctx context.Context, reg *Registration) error
	Get(ctx context.Context, userID, eventID string) (*Registration, error)
	SetAttended(ctx context.Context, eventID string, userIDs []string, attended bool) (int64, error)
	ListRegistrants(ctx context.Context, eventID string, limit, offset int) ([]*Registrant, int, error)
	ListByUser(ctx context.Context, userID string) ([]*Registration, error)
	CountForEvent(ctx context.Context, eventID string) (int, error)
}

// PaymentStatusReader reports whether a captured payment exists for the
// pair, which is what turns a priced registration valid.
type PaymentStatusReader interface {
	HasCaptured(ctx context.Context, userID, eventID string) (bool, error)
}

type EventCatalog interface {
	Get(ctx context.Context, id string) (*events.Event, error)
	ReserveSlot(ctx context.Context, id string) error
	ReleaseSlot(ctx context.Context, id string) error
}

type Service struct {
	repo     Repository
	events   EventCatalog
	payments PaymentStatusReader
	logger   zerolog.Logger
}

func NewService(repo Repository, catalog EventCatalog, payments PaymentStatusReader, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		events:   catalog,
		payments: payments,
		logger:   logger.With().Str("component", "registrations").Logger(),
	}
}

// Apply registers the user for a free event, claiming a capacity slot
// atomically. Priced events must go through the payment workflow, which
// is signalled with ErrPaymentRequired so the caller can route there.
func (s *Service) Apply(ctx context.Context, userID, eventID string) (*Registration, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	status, err := s.Status(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if status == StatusValid {
		return nil, ErrAlreadyRegistered
	}

	if !event.Free {
		return nil, ErrPaymentRequired
	}

	if err := s.events.ReserveSlot(ctx, eventID); err != nil {
		return nil, err
	}

	reg := &Registration{
		ID:      ids.MustNewULID(),
		UserID:  userID,
		EventID: eventID,
	}
	if err := s.repo.Create(ctx, reg); err != nil {
		if releaseErr := s.events.ReleaseSlot(ctx, eventID); releaseErr != nil {
			s.logger.Error().Err(releaseErr).Str("event_id", eventID).Msg("failed to release slot after create failure")
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Str("event_id", eventID).Msg("registered for free event")
	return reg, nil
}

// Status resolves the tri-state standing. A registration row for a
// priced event without a captured payment is pending, not valid.
func (s *Service) Status(ctx context.Context, userID, eventID string) (Status, error) {
	reg, err := s.repo.Get(ctx, userID, eventID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return StatusNone, nil
		}
		return StatusNone, err
	}
	return s.statusOf(ctx, reg)
}

// statusOf resolves standing for a registration row that is known to exist.
func (s *Service) statusOf(ctx context.Context, reg *Registration) (Status, error) {
	event, err := s.events.Get(ctx, reg.EventID)
	if err != nil {
		return StatusNone, err
	}
	if event.Free {
		return StatusValid, nil
	}

	captured, err := s.payments.HasCaptured(ctx, reg.UserID, reg.EventID)
	if err != nil {
		return StatusNone, err
	}
	if captured {
		return StatusValid, nil
	}
	return StatusPending, nil
}

// MarkAttendance flips the attended flag for the given users. Only the
// event owner or an admin may do this, and only on events that track
// attendance.
func (s *Service) MarkAttendance(ctx context.Context, actor *auth.Identity, eventID string, userIDs []string, attended bool) (int64, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if !auth.CanManage(actor, event.OwnerID) {
		return 0, events.ErrForbidden
	}
	if !event.AttendanceRequired {
		return 0, ErrAttendanceOff
	}

	updated, err := s.repo.SetAttended(ctx, eventID, userIDs, attended)
	if err != nil {
		return 0, fmt.Errorf("set attendance: %w", err)
	}
	s.logger.Info().Str("event_id", eventID).Int64("updated", updated).Bool("attended", attended).Msg("attendance marked")
	return updated, nil
}

// ListRegistrants returns the roster for an event, owner or admin only.
func (s *Service) ListRegistrants(ctx context.Context, actor *auth.Identity, eventID string, limit, offset int) ([]*Registrant, int, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, 0, err
	}
	if !auth.CanManage(actor, event.OwnerID) {
		return nil, 0, events.ErrForbidden
	}
	return s.repo.ListRegistrants(ctx, eventID, limit, offset)
}

// ListMine returns the user's registrations with the standing resolved
// per event, so priced events awaiting capture show up as pending.
func (s *Service) ListMine(ctx context.Context, userID string) ([]*RegistrationView, error) {
	regs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]*RegistrationView, 0, len(regs))
	for _, reg := range regs {
		status, err := s.statusOf(ctx, reg)
		if err != nil {
			return nil, err
		}
		views = append(views, &RegistrationView{Registration: *reg, Status: status})
	}
	return views, nil
}

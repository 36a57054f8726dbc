// Package payments runs the order and reconciliation workflow for priced
// events. Orders are created against the payment provider first and only
// then persisted, so a provider failure never leaves a stray pending row.
// The webhook is the source of truth for outcomes.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/get-me-through/server/internal/domain/events"
	"github.com/get-me-through/server/internal/domain/ids"
	"github.com/get-me-through/server/internal/domain/registrations"
	"github.com/rs/zerolog"
)

const (
	StatusCreated  = "created"
	StatusCaptured = "captured"
	StatusFailed   = "failed"
)

var (
	ErrNotFound         = errors.New("payment not found")
	ErrFreeEvent        = errors.New("event is free, no payment needed")
	ErrAlreadyPaid      = errors.New("payment already captured for this event")
	ErrInvalidSignature = errors.New("webhook signature mismatch")
)

// Payment mirrors one provider order. Amount and AmountPaid are in minor
// currency units. OrderRef and PaymentRef are the provider's identifiers.
type Payment struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	EventID        string    `json:"eventId"`
	RegistrationID string    `json:"registrationId"`
	Amount         int64     `json:"amount"`
	AmountPaid     int64     `json:"amountPaid"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	Method         string    `json:"method,omitempty"`
	OrderRef       string    `json:"orderRef"`
	PaymentRef     string    `json:"paymentRef,omitempty"`
	Receipt        string    `json:"receipt"`
	Attempts       int       `json:"attempts"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ProviderOrder is the provider's view of a freshly created order.
type ProviderOrder struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// Provider creates orders at the upstream payment gateway.
type Provider interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*ProviderOrder, error)
}

// StatusUpdate is the outcome applied by reconciliation.
type StatusUpdate struct {
	OrderRef   string
	PaymentRef string
	Method     string
	Status     string
	AmountPaid int64
}

type Repository interface {
	// CreatePending inserts the registration row if absent and the
	// payment row in one transaction.
	CreatePending(ctx context.Context, reg *registrations.Registration, payment *Payment) error
	GetByUserEvent(ctx context.Context, userID, eventID string) (*Payment, error)
	GetByOrderRef(ctx context.Context, orderRef string) (*Payment, error)

	// ApplyStatus applies a reconciliation outcome by order reference.
	// It never downgrades a captured payment and reports whether the row
	// actually transitioned, so webhook retries stay idempotent.
	ApplyStatus(ctx context.Context, update StatusUpdate) (*Payment, bool, error)

	HasCaptured(ctx context.Context, userID, eventID string) (bool, error)
}

type EventCatalog interface {
	Get(ctx context.Context, id string) (*events.Event, error)
	ReserveSlot(ctx context.Context, id string) error
}

// Auditor records reconciliation outcomes on the audit trail.
type Auditor interface {
	PaymentReconciled(orderRef, paymentRef, status string, amountMinor int64)
}

// Notifier tells operators about a reconciliation outcome, usually via a
// background job. Failures are logged, never surfaced to the provider.
type Notifier interface {
	NotifyReconciliation(ctx context.Context, payment *Payment, outcome string) error
}

type Service struct {
	repo          Repository
	events        EventCatalog
	provider      Provider
	auditor       Auditor
	notifier      Notifier
	currency      string
	webhookSecret string
	keySecret     string
	logger        zerolog.Logger
}

type Config struct {
	Currency      string
	WebhookSecret string
	KeySecret     string
}

func NewService(repo Repository, catalog EventCatalog, provider Provider, auditor Auditor, notifier Notifier, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		repo:          repo,
		events:        catalog,
		provider:      provider,
		auditor:       auditor,
		notifier:      notifier,
		currency:      cfg.Currency,
		webhookSecret: cfg.WebhookSecret,
		keySecret:     cfg.KeySecret,
		logger:        logger.With().Str("component", "payments").Logger(),
	}
}

// Order is what the checkout page needs to open the provider widget.
type Order struct {
	OrderRef string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// CreateOrder starts (or resumes) a payment for a priced event. A second
// call before the first order settles returns the same order, so the user
// can retry checkout without stacking provider orders.
func (s *Service) CreateOrder(ctx context.Context, userID, email, eventID string) (*Order, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Free {
		return nil, ErrFreeEvent
	}

	existing, err := s.repo.GetByUserEvent(ctx, userID, eventID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		switch existing.Status {
		case StatusCaptured:
			return nil, ErrAlreadyPaid
		case StatusCreated:
			return &Order{
				OrderRef: existing.OrderRef,
				Amount:   existing.Amount,
				Currency: existing.Currency,
				Receipt:  existing.Receipt,
			}, nil
		}
		// A failed payment falls through to a fresh order.
	}

	// Capacity is only provisionally checked here; the slot is claimed at
	// capture time, when the money has actually moved.
	if !event.HasSpace() {
		return nil, events.ErrFull
	}

	providerOrder, err := s.provider.CreateOrder(ctx, event.Price, s.currency, email)
	if err != nil {
		return nil, fmt.Errorf("provider order: %w", err)
	}

	attempts := 1
	if existing != nil {
		attempts = existing.Attempts + 1
	}
	payment := &Payment{
		ID:             ids.MustNewULID(),
		UserID:         userID,
		EventID:        eventID,
		Amount:         providerOrder.Amount,
		Currency:       providerOrder.Currency,
		Status:         StatusCreated,
		OrderRef:       providerOrder.ID,
		Receipt:        email,
		Attempts:       attempts,
	}
	reg := &registrations.Registration{
		ID:      ids.MustNewULID(),
		UserID:  userID,
		EventID: eventID,
	}
	if err := s.repo.CreatePending(ctx, reg, payment); err != nil {
		return nil, fmt.Errorf("persist pending payment: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("event_id", eventID).
		Str("order_ref", payment.OrderRef).
		Int64("amount", payment.Amount).
		Msg("payment order created")

	return &Order{
		OrderRef: providerOrder.ID,
		Amount:   providerOrder.Amount,
		Currency: providerOrder.Currency,
		Receipt:  email,
	}, nil
}

// Get returns the payment for a user and event.
func (s *Service) Get(ctx context.Context, userID, eventID string) (*Payment, error) {
	return s.repo.GetByUserEvent(ctx, userID, eventID)
}

// HasCaptured satisfies the registration ledger's payment check.
func (s *Service) HasCaptured(ctx context.Context, userID, eventID string) (bool, error) {
	return s.repo.HasCaptured(ctx, userID, eventID)
}

// Reconcile applies one webhook delivery. The signature is checked before
// the body is even parsed; nothing mutates on a mismatch. Deliveries for
// already settled orders are acknowledged without effect.
func (s *Service) Reconcile(ctx context.Context, body []byte, signature string) error {
	if !VerifySignature(s.webhookSecret, body, signature) {
		return ErrInvalidSignature
	}

	delivery, err := ParseWebhook(body)
	if err != nil {
		return fmt.Errorf("parse webhook: %w", err)
	}

	var status string
	switch delivery.Event {
	case "payment.captured":
		status = StatusCaptured
	case "payment.failed":
		status = StatusFailed
	default:
		s.logger.Debug().Str("event", delivery.Event).Msg("ignoring webhook event")
		return nil
	}

	entity := delivery.Payload.Payment.Entity
	payment, transitioned, err := s.repo.ApplyStatus(ctx, StatusUpdate{
		OrderRef:   entity.OrderID,
		PaymentRef: entity.ID,
		Method:     entity.Method,
		Status:     status,
		AmountPaid: entity.Amount,
	})
	if err != nil {
		return fmt.Errorf("apply status: %w", err)
	}
	if !transitioned {
		s.logger.Info().Str("order_ref", entity.OrderID).Str("status", status).Msg("webhook replay, no transition")
		return nil
	}

	if status == StatusCaptured {
		if err := s.events.ReserveSlot(ctx, payment.EventID); err != nil {
			if errors.Is(err, events.ErrFull) {
				// Money moved for a now-full event. The registration
				// stands; operators resolve the oversubscription.
				s.logger.Warn().
					Str("event_id", payment.EventID).
					Str("order_ref", payment.OrderRef).
					Msg("captured payment for full event")
			} else {
				s.logger.Error().Err(err).Str("event_id", payment.EventID).Msg("failed to reserve slot on capture")
			}
		}
	}

	s.auditor.PaymentReconciled(payment.OrderRef, payment.PaymentRef, status, payment.AmountPaid)
	if err := s.notifier.NotifyReconciliation(ctx, payment, status); err != nil {
		s.logger.Error().Err(err).Str("order_ref", payment.OrderRef).Msg("failed to enqueue operator notification")
	}

	s.logger.Info().
		Str("order_ref", payment.OrderRef).
		Str("payment_ref", payment.PaymentRef).
		Str("status", status).
		Msg("payment reconciled")
	return nil
}

// VerifyRedirect checks the signature the provider appends to the browser
// redirect after checkout. This is a UX hint only; entitlement still waits
// for the webhook.
func (s *Service) VerifyRedirect(orderRef, paymentRef, signature string) bool {
	return VerifyRedirectSignature(s.keySecret, orderRef, paymentRef, signature)
}

package jobs

import (
	"context"
	"fmt"

	"github.com/get-me-through/server/internal/domain/payments"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
)

// Enqueuer puts work on the queue instead of doing it inline. It
// satisfies the domain mailer and notifier interfaces, so request
// handlers return as soon as the job row is committed.
type Enqueuer struct {
	client *river.Client[pgx.Tx]
}

func NewEnqueuer(client *river.Client[pgx.Tx]) *Enqueuer {
	return &Enqueuer{client: client}
}

// Send queues an email for background delivery.
func (e *Enqueuer) Send(ctx context.Context, to, subject, htmlBody, category string) error {
	opts := InsertOptsForKind(JobKindEmailDelivery)
	_, err := e.client.Insert(ctx, EmailDeliveryArgs{
		To:       to,
		Subject:  subject,
		HTMLBody: htmlBody,
		Category: category,
	}, &opts)
	if err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}

// NotifyReconciliation queues an operator notification for a settled
// payment.
func (e *Enqueuer) NotifyReconciliation(ctx context.Context, payment *payments.Payment, outcome string) error {
	opts := InsertOptsForKind(JobKindOperatorNotify)
	_, err := e.client.Insert(ctx, OperatorNotifyArgs{
		OrderRef:   payment.OrderRef,
		PaymentRef: payment.PaymentRef,
		EventID:    payment.EventID,
		Outcome:    outcome,
		Amount:     payment.AmountPaid,
	}, &opts)
	if err != nil {
		return fmt.Errorf("enqueue operator notification: %w", err)
	}
	return nil
}

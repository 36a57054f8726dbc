package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/get-me-through/server/internal/domain/otp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
)

// Mailer is the synchronous delivery path the workers drive.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, category string) error
}

type EmailDeliveryArgs struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	Category string `json:"category"`
}

func (EmailDeliveryArgs) Kind() string { return JobKindEmailDelivery }

// EmailDeliveryWorker sends one queued email. Provider errors surface so
// River retries with backoff.
type EmailDeliveryWorker struct {
	river.WorkerDefaults[EmailDeliveryArgs]
	Mailer Mailer
}

func (EmailDeliveryWorker) Kind() string { return JobKindEmailDelivery }

func (w EmailDeliveryWorker) Work(ctx context.Context, job *river.Job[EmailDeliveryArgs]) error {
	if w.Mailer == nil {
		return fmt.Errorf("mailer not configured")
	}
	if job.Args.To == "" {
		return fmt.Errorf("email job has no recipient")
	}
	return w.Mailer.Send(ctx, job.Args.To, job.Args.Subject, job.Args.HTMLBody, job.Args.Category)
}

type OperatorNotifyArgs struct {
	OrderRef   string `json:"order_ref"`
	PaymentRef string `json:"payment_ref"`
	EventID    string `json:"event_id"`
	Outcome    string `json:"outcome"`
	Amount     int64  `json:"amount"`
}

func (OperatorNotifyArgs) Kind() string { return JobKindOperatorNotify }

// OperatorNotifyWorker mails the operator inbox about a payment outcome.
type OperatorNotifyWorker struct {
	river.WorkerDefaults[OperatorNotifyArgs]
	Mailer       Mailer
	OperatorAddr string
}

func (OperatorNotifyWorker) Kind() string { return JobKindOperatorNotify }

func (w OperatorNotifyWorker) Work(ctx context.Context, job *river.Job[OperatorNotifyArgs]) error {
	if w.Mailer == nil {
		return fmt.Errorf("mailer not configured")
	}
	if w.OperatorAddr == "" {
		// No operator inbox configured, nothing to do.
		return nil
	}

	subject := fmt.Sprintf("Payment %s | order %s", job.Args.Outcome, job.Args.OrderRef)
	body := fmt.Sprintf(
		"<p>Order <b>%s</b> (payment %s) for event %s settled as <b>%s</b>. Amount: %d minor units.</p>",
		job.Args.OrderRef, job.Args.PaymentRef, job.Args.EventID, job.Args.Outcome, job.Args.Amount,
	)
	return w.Mailer.Send(ctx, w.OperatorAddr, subject, body, "operator_notify")
}

type ResetTokenCleanupArgs struct{}

func (ResetTokenCleanupArgs) Kind() string { return JobKindResetTokenCleanup }

// ResetTokenCleanupWorker removes password reset tokens past their TTL.
type ResetTokenCleanupWorker struct {
	river.WorkerDefaults[ResetTokenCleanupArgs]
	Pool *pgxpool.Pool
}

func (ResetTokenCleanupWorker) Kind() string { return JobKindResetTokenCleanup }

func (w ResetTokenCleanupWorker) Work(ctx context.Context, _ *river.Job[ResetTokenCleanupArgs]) error {
	if w.Pool == nil {
		return fmt.Errorf("database pool not configured")
	}

	const deleteQuery = `DELETE FROM otp_records WHERE purpose = $1 AND created_at < $2`
	cutoff := time.Now().Add(-otp.ResetTokenTTL)
	if _, err := w.Pool.Exec(ctx, deleteQuery, otp.PurposePasswordReset, cutoff); err != nil {
		return fmt.Errorf("delete expired reset tokens: %w", err)
	}
	return nil
}

// NewWorkers registers every worker the server runs.
func NewWorkers(mailer Mailer, operatorAddr string, pool *pgxpool.Pool) (*river.Workers, error) {
	workers := river.NewWorkers()
	if err := river.AddWorkerSafely(workers, EmailDeliveryWorker{Mailer: mailer}); err != nil {
		return nil, fmt.Errorf("register email delivery worker: %w", err)
	}
	if err := river.AddWorkerSafely(workers, OperatorNotifyWorker{Mailer: mailer, OperatorAddr: operatorAddr}); err != nil {
		return nil, fmt.Errorf("register operator notify worker: %w", err)
	}
	if err := river.AddWorkerSafely(workers, ResetTokenCleanupWorker{Pool: pool}); err != nil {
		return nil, fmt.Errorf("register reset token cleanup worker: %w", err)
	}
	return workers, nil
}

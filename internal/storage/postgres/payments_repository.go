package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/get-me-through/server/internal/domain/payments"
	"github.com/get-me-through/server/internal/domain/registrations"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `
id, user_id, event_id, registration_id, amount, amount_paid, currency,
status, method, order_reference, payment_reference, receipt, attempts,
created_at, updated_at`

func (r *PaymentRepository) q() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

// CreatePending writes the registration row and the pending payment in
// one transaction. The registration insert tolerates an existing row so
// a retried order after a failed payment reuses it.
func (r *PaymentRepository) CreatePending(ctx context.Context, reg *registrations.Registration, payment *payments.Payment) error {
	if r.tx != nil {
		return r.createPending(ctx, r.tx, reg, payment)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := r.createPending(ctx, tx, reg, payment); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *PaymentRepository) createPending(ctx context.Context, tx pgx.Tx, reg *registrations.Registration, payment *payments.Payment) error {
	_, err := tx.Exec(ctx, `
INSERT INTO registrations (id, user_id, event_id)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, event_id) DO NOTHING
`, reg.ID, reg.UserID, reg.EventID)
	if err != nil {
		return fmt.Errorf("create registration: %w", err)
	}

	var registrationID string
	err = tx.QueryRow(ctx, `
SELECT id FROM registrations WHERE user_id = $1 AND event_id = $2
`, reg.UserID, reg.EventID).Scan(&registrationID)
	if err != nil {
		return fmt.Errorf("resolve registration: %w", err)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO payments (
	id, user_id, event_id, registration_id, amount, currency, status,
	order_reference, receipt, attempts
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`,
		payment.ID, payment.UserID, payment.EventID, registrationID,
		payment.Amount, payment.Currency, payment.Status,
		payment.OrderRef, payment.Receipt, payment.Attempts,
	)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// GetByUserEvent returns the latest attempt for the pair.
func (r *PaymentRepository) GetByUserEvent(ctx context.Context, userID, eventID string) (*payments.Payment, error) {
	row := r.q().QueryRow(ctx, `
SELECT`+paymentColumns+`
  FROM payments
 WHERE user_id = $1 AND event_id = $2
 ORDER BY attempts DESC
 LIMIT 1
`, userID, eventID)

	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payments.ErrNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return payment, nil
}

func (r *PaymentRepository) GetByOrderRef(ctx context.Context, orderRef string) (*payments.Payment, error) {
	row := r.q().QueryRow(ctx, `
SELECT`+paymentColumns+`
  FROM payments
 WHERE order_reference = $1
`, orderRef)

	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payments.ErrNotFound
		}
		return nil, fmt.Errorf("get payment by order: %w", err)
	}
	return payment, nil
}

// ApplyStatus transitions the payment by order reference. The guard in
// the WHERE clause makes replays and capture downgrades no-ops, which
// the false return distinguishes from an unknown order.
func (r *PaymentRepository) ApplyStatus(ctx context.Context, update payments.StatusUpdate) (*payments.Payment, bool, error) {
	row := r.q().QueryRow(ctx, `
UPDATE payments
   SET status = $2, payment_reference = $3, method = $4,
       amount_paid = $5, updated_at = now()
 WHERE order_reference = $1
   AND status <> $6
   AND status <> $2
RETURNING`+paymentColumns, update.OrderRef, update.Status, update.PaymentRef, update.Method, update.AmountPaid, payments.StatusCaptured)

	payment, err := scanPayment(row)
	if err == nil {
		return payment, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("apply payment status: %w", err)
	}

	var exists bool
	if err := r.q().QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM payments WHERE order_reference = $1)
`, update.OrderRef).Scan(&exists); err != nil {
		return nil, false, fmt.Errorf("check payment order: %w", err)
	}
	if !exists {
		return nil, false, payments.ErrNotFound
	}
	return nil, false, nil
}

func (r *PaymentRepository) HasCaptured(ctx context.Context, userID, eventID string) (bool, error) {
	var captured bool
	err := r.q().QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM payments
	 WHERE user_id = $1 AND event_id = $2 AND status = $3
)
`, userID, eventID, payments.StatusCaptured).Scan(&captured)
	if err != nil {
		return false, fmt.Errorf("check captured payment: %w", err)
	}
	return captured, nil
}

func scanPayment(row pgx.Row) (*payments.Payment, error) {
	var payment payments.Payment
	err := row.Scan(
		&payment.ID,
		&payment.UserID,
		&payment.EventID,
		&payment.RegistrationID,
		&payment.Amount,
		&payment.AmountPaid,
		&payment.Currency,
		&payment.Status,
		&payment.Method,
		&payment.OrderRef,
		&payment.PaymentRef,
		&payment.Receipt,
		&payment.Attempts,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

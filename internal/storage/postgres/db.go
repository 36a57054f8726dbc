package postgres

import (
	"context"
	"fmt"

	"github.com/get-me-through/server/internal/domain/categories"
	"github.com/get-me-through/server/internal/domain/events"
	"github.com/get-me-through/server/internal/domain/otp"
	"github.com/get-me-through/server/internal/domain/payments"
	"github.com/get-me-through/server/internal/domain/registrations"
	"github.com/get-me-through/server/internal/domain/sessions"
	"github.com/get-me-through/server/internal/domain/tickets"
	"github.com/get-me-through/server/internal/domain/users"
	"github.com/get-me-through/server/internal/email"
	"github.com/get-me-through/server/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Users() users.Repository {
	return &UserRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Sessions() sessions.Repository {
	return &SessionRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) OTP() otp.Repository {
	return &OTPRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Events() events.Repository {
	return &EventRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Registrations() registrations.Repository {
	return &RegistrationRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Payments() payments.Repository {
	return &PaymentRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Categories() categories.Repository {
	return &CategoryRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Tickets() tickets.Repository {
	return &TicketRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) EmailLogs() email.LogStore {
	return &EmailLogRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, storage.Repository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	wrapped := &Repository{pool: r.pool, tx: tx}
	if err := fn(ctx, wrapped); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// queryer is the subset of pgx shared by pools and transactions, so
// every repository runs unchanged inside WithTx.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type UserRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

type SessionRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

type OTPRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

type EventRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

type RegistrationRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

type PaymentRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

type CategoryRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

type TicketRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

type EmailLogRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

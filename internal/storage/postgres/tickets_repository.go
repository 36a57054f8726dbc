package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/get-me-through/server/internal/domain/tickets"
	"github.com/jackc/pgx/v5"
)

func (r *TicketRepository) q() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *TicketRepository) Create(ctx context.Context, ticket *tickets.Ticket) error {
	_, err := r.q().Exec(ctx, `
INSERT INTO tickets (id, name, email, subject, message)
VALUES ($1, $2, $3, $4, $5)
`, ticket.ID, ticket.Name, ticket.Email, ticket.Subject, ticket.Message)
	if err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id string) (*tickets.Ticket, error) {
	row := r.q().QueryRow(ctx, `
SELECT id, name, email, subject, message, resolved, created_at
  FROM tickets
 WHERE id = $1
`, id)

	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tickets.ErrNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return ticket, nil
}

func (r *TicketRepository) List(ctx context.Context, resolved *bool, limit, offset int) ([]*tickets.Ticket, int, error) {
	where := ""
	args := []any{}
	if resolved != nil {
		where = "\n WHERE resolved = $1"
		args = append(args, *resolved)
	}

	var total int
	if err := r.q().QueryRow(ctx, `SELECT count(*) FROM tickets`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
SELECT id, name, email, subject, message, resolved, created_at
  FROM tickets%s
 ORDER BY created_at DESC
 LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.q().Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var out []*tickets.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, ticket)
	}
	return out, total, rows.Err()
}

func (r *TicketRepository) ListByEmail(ctx context.Context, email string) ([]*tickets.Ticket, error) {
	rows, err := r.q().Query(ctx, `
SELECT id, name, email, subject, message, resolved, created_at
  FROM tickets
 WHERE email = $1
 ORDER BY created_at DESC
`, email)
	if err != nil {
		return nil, fmt.Errorf("list tickets by email: %w", err)
	}
	defer rows.Close()

	var out []*tickets.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, ticket)
	}
	return out, rows.Err()
}

func (r *TicketRepository) SetResolved(ctx context.Context, id string, resolved bool) error {
	tag, err := r.q().Exec(ctx, `
UPDATE tickets SET resolved = $2 WHERE id = $1
`, id, resolved)
	if err != nil {
		return fmt.Errorf("resolve ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tickets.ErrNotFound
	}
	return nil
}

func scanTicket(row pgx.Row) (*tickets.Ticket, error) {
	var ticket tickets.Ticket
	err := row.Scan(
		&ticket.ID,
		&ticket.Name,
		&ticket.Email,
		&ticket.Subject,
		&ticket.Message,
		&ticket.Resolved,
		&ticket.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

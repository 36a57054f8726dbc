package postgres

import (
	"context"
	"fmt"

	"github.com/get-me-through/server/internal/email"
)

func (r *EmailLogRepository) q() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *EmailLogRepository) Record(ctx context.Context, log *email.Log) error {
	err := r.q().QueryRow(ctx, `
INSERT INTO email_logs (recipient, subject, category, delivered, error)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at
`, log.Recipient, log.Subject, log.Category, log.Delivered, log.Error).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("record email log: %w", err)
	}
	return nil
}

func (r *EmailLogRepository) List(ctx context.Context, limit, offset int) ([]*email.Log, int, error) {
	var total int
	if err := r.q().QueryRow(ctx, `SELECT count(*) FROM email_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count email logs: %w", err)
	}

	rows, err := r.q().Query(ctx, `
SELECT id, recipient, subject, category, delivered, error, created_at
  FROM email_logs
 ORDER BY created_at DESC
 LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()

	var out []*email.Log
	for rows.Next() {
		var log email.Log
		if err := rows.Scan(
			&log.ID,
			&log.Recipient,
			&log.Subject,
			&log.Category,
			&log.Delivered,
			&log.Error,
			&log.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan email log: %w", err)
		}
		out = append(out, &log)
	}
	return out, total, rows.Err()
}

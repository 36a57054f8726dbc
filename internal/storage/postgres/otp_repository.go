package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/get-me-through/server/internal/domain/otp"
	"github.com/jackc/pgx/v5"
)

func (r *OTPRepository) q() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *OTPRepository) Get(ctx context.Context, email, purpose string) (*otp.Record, error) {
	row := r.q().QueryRow(ctx, `
SELECT email, purpose, code, created_at
  FROM otp_records
 WHERE email = $1 AND purpose = $2
`, email, purpose)

	record, err := scanOTP(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, otp.ErrNotGenerated
		}
		return nil, fmt.Errorf("get otp: %w", err)
	}
	return record, nil
}

func (r *OTPRepository) GetByCode(ctx context.Context, code, purpose string) (*otp.Record, error) {
	row := r.q().QueryRow(ctx, `
SELECT email, purpose, code, created_at
  FROM otp_records
 WHERE code = $1 AND purpose = $2
`, code, purpose)

	record, err := scanOTP(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, otp.ErrNotGenerated
		}
		return nil, fmt.Errorf("get otp by code: %w", err)
	}
	return record, nil
}

func (r *OTPRepository) Upsert(ctx context.Context, record *otp.Record) error {
	_, err := r.q().Exec(ctx, `
INSERT INTO otp_records (email, purpose, code, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (email, purpose) DO UPDATE
   SET code = $3, created_at = $4
`, record.Email, record.Purpose, record.Code, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert otp: %w", err)
	}
	return nil
}

func (r *OTPRepository) Delete(ctx context.Context, email, purpose string) error {
	_, err := r.q().Exec(ctx, `
DELETE FROM otp_records WHERE email = $1 AND purpose = $2
`, email, purpose)
	if err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

func (r *OTPRepository) DeleteExpiredResets(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.q().Exec(ctx, `
DELETE FROM otp_records WHERE purpose = $1 AND created_at < $2
`, otp.PurposePasswordReset, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired resets: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanOTP(row pgx.Row) (*otp.Record, error) {
	var record otp.Record
	if err := row.Scan(&record.Email, &record.Purpose, &record.Code, &record.CreatedAt); err != nil {
		return nil, err
	}
	return &record, nil
}

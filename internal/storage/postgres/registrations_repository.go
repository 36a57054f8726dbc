package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/get-me-through/server/internal/domain/registrations"
	"github.com/jackc/pgx/v5"
)

func (r *RegistrationRepository) q() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *RegistrationRepository) Create(ctx context.Context, reg *registrations.Registration) error {
	_, err := r.q().Exec(ctx, `
INSERT INTO registrations (id, user_id, event_id)
VALUES ($1, $2, $3)
`, reg.ID, reg.UserID, reg.EventID)
	if err != nil {
		if isUniqueViolation(err) {
			return registrations.ErrAlreadyRegistered
		}
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

func (r *RegistrationRepository) Get(ctx context.Context, userID, eventID string) (*registrations.Registration, error) {
	row := r.q().QueryRow(ctx, `
SELECT id, user_id, event_id, attended, created_at
  FROM registrations
 WHERE user_id = $1 AND event_id = $2
`, userID, eventID)

	var reg registrations.Registration
	err := row.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.Attended, &reg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, registrations.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return &reg, nil
}

func (r *RegistrationRepository) SetAttended(ctx context.Context, eventID string, userIDs []string, attended bool) (int64, error) {
	tag, err := r.q().Exec(ctx, `
UPDATE registrations
   SET attended = $3
 WHERE event_id = $1 AND user_id = ANY($2)
`, eventID, userIDs, attended)
	if err != nil {
		return 0, fmt.Errorf("set attended: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *RegistrationRepository) ListRegistrants(ctx context.Context, eventID string, limit, offset int) ([]*registrations.Registrant, int, error) {
	var total int
	err := r.q().QueryRow(ctx, `
SELECT count(*) FROM registrations WHERE event_id = $1
`, eventID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count registrants: %w", err)
	}

	rows, err := r.q().Query(ctx, `
SELECT r.id, r.user_id, u.name, u.email, u.mobile, u.verified, u.face_verified, r.attended, r.created_at
  FROM registrations r
  JOIN users u ON u.id = r.user_id
 WHERE r.event_id = $1
 ORDER BY r.created_at ASC
 LIMIT $2 OFFSET $3
`, eventID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list registrants: %w", err)
	}
	defer rows.Close()

	var out []*registrations.Registrant
	for rows.Next() {
		var reg registrations.Registrant
		if err := rows.Scan(
			&reg.RegistrationID,
			&reg.UserID,
			&reg.Name,
			&reg.Email,
			&reg.Mobile,
			&reg.Verified,
			&reg.FaceVerified,
			&reg.Attended,
			&reg.RegisteredAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan registrant: %w", err)
		}
		out = append(out, &reg)
	}
	return out, total, rows.Err()
}

func (r *RegistrationRepository) ListByUser(ctx context.Context, userID string) ([]*registrations.Registration, error) {
	rows, err := r.q().Query(ctx, `
SELECT id, user_id, event_id, attended, created_at
  FROM registrations
 WHERE user_id = $1
 ORDER BY created_at DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []*registrations.Registration
	for rows.Next() {
		var reg registrations.Registration
		if err := rows.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.Attended, &reg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, &reg)
	}
	return out, rows.Err()
}

func (r *RegistrationRepository) CountForEvent(ctx context.Context, eventID string) (int, error) {
	var total int
	err := r.q().QueryRow(ctx, `
SELECT count(*) FROM registrations WHERE event_id = $1
`, eventID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return total, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/get-me-through/server/internal/domain/users"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = `id, name, email, mobile, password_hash, role, verified, face_verified, deleted, created_at, updated_at`

func (r *UserRepository) q() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *UserRepository) Create(ctx context.Context, user *users.User) (*users.User, error) {
	id := uuid.NewString()
	row := r.q().QueryRow(ctx, `
INSERT INTO users (id, name, email, mobile, password_hash, role)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+userColumns+`
`, id, user.Name, user.Email, user.Mobile, user.PasswordHash, user.Role)

	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, users.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	row := r.q().QueryRow(ctx, `
SELECT `+userColumns+`
  FROM users
 WHERE id = $1 AND NOT deleted
`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	row := r.q().QueryRow(ctx, `
SELECT `+userColumns+`
  FROM users
 WHERE email = $1 AND NOT deleted
`, email)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *UserRepository) SetVerified(ctx context.Context, email string, verified bool) error {
	tag, err := r.q().Exec(ctx, `
UPDATE users SET verified = $2, updated_at = now() WHERE email = $1 AND NOT deleted
`, email, verified)
	if err != nil {
		return fmt.Errorf("set verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetFaceVerified(ctx context.Context, email string) error {
	tag, err := r.q().Exec(ctx, `
UPDATE users SET face_verified = true, updated_at = now() WHERE email = $1 AND NOT deleted
`, email)
	if err != nil {
		return fmt.Errorf("set face verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := r.q().Exec(ctx, `
UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1 AND NOT deleted
`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

// SoftDelete keeps the row so registrations and payments stay
// auditable, but the account no longer resolves for login or lookups.
func (r *UserRepository) SoftDelete(ctx context.Context, id string) error {
	tag, err := r.q().Exec(ctx, `
UPDATE users SET deleted = true, updated_at = now() WHERE id = $1 AND NOT deleted
`, id)
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]users.User, error) {
	rows, err := r.q().Query(ctx, `
SELECT `+userColumns+`
  FROM users
 WHERE NOT deleted
 ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []users.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *user)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (*users.User, error) {
	var user users.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Mobile,
		&user.PasswordHash,
		&user.Role,
		&user.Verified,
		&user.FaceVerified,
		&user.Deleted,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/get-me-through/server/internal/domain/categories"
	"github.com/jackc/pgx/v5"
)

func (r *CategoryRepository) q() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *CategoryRepository) Create(ctx context.Context, name string) (*categories.Category, error) {
	row := r.q().QueryRow(ctx, `
INSERT INTO categories (name)
VALUES ($1)
RETURNING id, name, created_at
`, name)

	category, err := scanCategory(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, categories.ErrDuplicate
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*categories.Category, error) {
	row := r.q().QueryRow(ctx, `
SELECT id, name, created_at FROM categories WHERE id = $1
`, id)

	category, err := scanCategory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, categories.ErrNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return category, nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]*categories.Category, error) {
	rows, err := r.q().Query(ctx, `
SELECT id, name, created_at FROM categories ORDER BY name ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []*categories.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, category)
	}
	return out, rows.Err()
}

func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.q().Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return categories.ErrNotFound
	}
	return nil
}

func scanCategory(row pgx.Row) (*categories.Category, error) {
	var category categories.Category
	if err := row.Scan(&category.ID, &category.Name, &category.CreatedAt); err != nil {
		return nil, err
	}
	return &category, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/get-me-through/server/internal/domain/events"
	"github.com/jackc/pgx/v5"
)

// eventColumns joins categories and users so every read carries the
// display names the API returns alongside the raw foreign keys.
const eventColumns = `
e.id, e.name, e.description, e.category_id, c.name, e.location,
e.start_time, e.end_time, e.url, e.image_uploaded, e.owner_id, u.name,
e.price, e.free, e.type, e.participation_limit, e.participants_count,
e.attendance_required, e.created_at, e.updated_at`

const eventJoins = `
  FROM events e
  JOIN categories c ON c.id = e.category_id
  JOIN users u ON u.id = e.owner_id`

func (r *EventRepository) q() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *EventRepository) Create(ctx context.Context, event *events.Event) error {
	_, err := r.q().Exec(ctx, `
INSERT INTO events (
	id, name, description, category_id, location, start_time, end_time,
	url, owner_id, price, free, type, participation_limit, attendance_required
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`,
		event.ID, event.Name, event.Description, event.CategoryID,
		event.Location, event.StartTime, event.EndTime, event.URL,
		event.OwnerID, event.Price, event.Free, event.Type,
		event.ParticipationLimit, event.AttendanceRequired,
	)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*events.Event, error) {
	row := r.q().QueryRow(ctx, `SELECT`+eventColumns+eventJoins+`
 WHERE e.id = $1`, id)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) Update(ctx context.Context, event *events.Event) error {
	tag, err := r.q().Exec(ctx, `
UPDATE events
   SET name = $2, description = $3, category_id = $4, location = $5,
       start_time = $6, end_time = $7, url = $8, image_uploaded = $9,
       price = $10, free = $11, type = $12, participation_limit = $13,
       attendance_required = $14, updated_at = now()
 WHERE id = $1
`,
		event.ID, event.Name, event.Description, event.CategoryID,
		event.Location, event.StartTime, event.EndTime, event.URL,
		event.ImageUploaded, event.Price, event.Free, event.Type,
		event.ParticipationLimit, event.AttendanceRequired,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.q().Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) List(ctx context.Context, filter events.Filter, limit, offset int) ([]*events.Event, int, error) {
	where, args := buildEventFilter(filter)

	var total int
	if err := r.q().QueryRow(ctx, `SELECT count(*)`+eventJoins+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT%s%s%s
 ORDER BY e.start_time ASC, e.id ASC
 LIMIT $%d OFFSET $%d`, eventColumns, eventJoins, where, len(args)-1, len(args))

	rows, err := r.q().Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*events.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, event)
	}
	return out, total, rows.Err()
}

func (r *EventRepository) ListOpen(ctx context.Context) ([]*events.Event, error) {
	rows, err := r.q().Query(ctx, `SELECT`+eventColumns+eventJoins+`
 WHERE e.type = $1
 ORDER BY e.start_time ASC`, events.TypeOpen)
	if err != nil {
		return nil, fmt.Errorf("list open events: %w", err)
	}
	defer rows.Close()

	var out []*events.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// ReserveSlot claims one participant slot with a single guarded update,
// so concurrent registrations cannot oversubscribe the limit.
func (r *EventRepository) ReserveSlot(ctx context.Context, id string) (bool, error) {
	tag, err := r.q().Exec(ctx, `
UPDATE events
   SET participants_count = participants_count + 1, updated_at = now()
 WHERE id = $1
   AND (participation_limit = 0 OR participants_count < participation_limit)
`, id)
	if err != nil {
		return false, fmt.Errorf("reserve slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EventRepository) ReleaseSlot(ctx context.Context, id string) error {
	_, err := r.q().Exec(ctx, `
UPDATE events
   SET participants_count = participants_count - 1, updated_at = now()
 WHERE id = $1 AND participants_count > 0
`, id)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

func buildEventFilter(filter events.Filter) (string, []any) {
	var clauses []string
	var args []any

	if filter.Type != "" {
		args = append(args, filter.Type)
		clauses = append(clauses, fmt.Sprintf("e.type = $%d", len(args)))
	}
	if filter.CategoryID != 0 {
		args = append(args, filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("e.category_id = $%d", len(args)))
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("e.owner_id = $%d", len(args)))
	}
	if filter.Free != nil {
		args = append(args, *filter.Free)
		clauses = append(clauses, fmt.Sprintf("e.free = $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "\n WHERE " + strings.Join(clauses, " AND "), args
}

func scanEvent(row pgx.Row) (*events.Event, error) {
	var event events.Event
	err := row.Scan(
		&event.ID,
		&event.Name,
		&event.Description,
		&event.CategoryID,
		&event.CategoryName,
		&event.Location,
		&event.StartTime,
		&event.EndTime,
		&event.URL,
		&event.ImageUploaded,
		&event.OwnerID,
		&event.OwnerName,
		&event.Price,
		&event.Free,
		&event.Type,
		&event.ParticipationLimit,
		&event.ParticipantsCount,
		&event.AttendanceRequired,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/ticketing-system/internal/model"
)

const eventColumns = `e.id, e.title, e.date, e.short_description, e.full_description, e.location, e.category,
	e.is_paid, e.price, e.creator_id, e.is_cancelled, e.image_data IS NOT NULL, e.created_at, e.updated_at`

const eventDetailsSelect = `SELECT ` + eventColumns + `,
	u.id, u.username, u.first_name, u.last_name,
	(SELECT COUNT(*) FROM attendances a WHERE a.event_id = e.id),
	(SELECT COUNT(*) FROM purchases p WHERE p.event_id = e.id)
	FROM events e
	JOIN users u ON u.id = e.creator_id`

func eventDest(e *model.Event) []any {
	return []any{&e.ID, &e.Title, &e.Date, &e.ShortDescription, &e.FullDescription, &e.Location,
		&e.Category, &e.IsPaid, &e.Price, &e.CreatorID, &e.IsCancelled, &e.HasImage,
		&e.CreatedAt, &e.UpdatedAt}
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var e model.Event
	if err := row.Scan(eventDest(&e)...); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEventDetails(row rowScanner) (*model.EventDetails, error) {
	var d model.EventDetails
	dest := append(eventDest(&d.Event),
		&d.Creator.ID, &d.Creator.Username, &d.Creator.FirstName, &d.Creator.LastName,
		&d.AttendanceCount, &d.PurchaseCount,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateEvent сохраняет новое событие.
func (q *Queries) CreateEvent(ctx context.Context, e *model.Event) (*model.Event, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO events AS e (title, date, short_description, full_description, location, category,
			is_paid, price, creator_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+eventColumns,
		e.Title, e.Date, e.ShortDescription, e.FullDescription, e.Location, string(e.Category),
		e.IsPaid, e.Price, e.CreatorID,
	)

	created, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return created, nil
}

// GetEvent возвращает событие без блокировки.
func (q *Queries) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	row := q.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id)

	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// LockEvent читает событие с блокировкой строки до конца транзакции.
// Вне транзакции блокировка снимается сразу после выполнения запроса.
func (q *Queries) LockEvent(ctx context.Context, id int64, mode LockMode) (*model.Event, error) {
	if mode != LockShare && mode != LockUpdate {
		return nil, fmt.Errorf("unsupported lock mode %q", mode)
	}

	row := q.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1 `+string(mode), id)

	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("lock event: %w", err)
	}
	return e, nil
}

// GetEventDetails возвращает событие вместе с создателем и счётчиками участия.
func (q *Queries) GetEventDetails(ctx context.Context, id int64) (*model.EventDetails, error) {
	row := q.db.QueryRow(ctx, eventDetailsSelect+` WHERE e.id = $1`, id)

	d, err := scanEventDetails(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event details: %w", err)
	}
	return d, nil
}

// ListEvents возвращает неотменённые события, начиная с f.From, отсортированные по дате.
func (q *Queries) ListEvents(ctx context.Context, f model.EventFilter) ([]model.EventDetails, error) {
	var pattern string
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern = "%" + escapeLike(s) + "%"
	}

	rows, err := q.db.Query(ctx,
		eventDetailsSelect+`
		 WHERE NOT e.is_cancelled
		   AND e.date >= $1
		   AND ($2::text = '' OR e.category = $2)
		   AND ($3::boolean IS NULL OR e.is_paid = $3)
		   AND ($4::text = '' OR e.title ILIKE $4 OR e.short_description ILIKE $4)
		 ORDER BY e.date ASC, e.id ASC`,
		f.From, string(f.Category), f.IsPaid, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var res []model.EventDetails
	for rows.Next() {
		d, err := scanEventDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		res = append(res, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateEvent сохраняет изменяемые поля события. Создатель и флаг отмены не меняются.
func (q *Queries) UpdateEvent(ctx context.Context, e *model.Event) (*model.Event, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE events AS e SET
			title = $2, date = $3, short_description = $4, full_description = $5,
			location = $6, category = $7, price = $8, updated_at = NOW()
		 WHERE e.id = $1
		 RETURNING `+eventColumns,
		e.ID, e.Title, e.Date, e.ShortDescription, e.FullDescription, e.Location,
		string(e.Category), e.Price,
	)

	updated, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return updated, nil
}

// MarkEventCancelled переводит событие в отменённое состояние.
func (q *Queries) MarkEventCancelled(ctx context.Context, id int64) (*model.Event, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE events AS e SET is_cancelled = TRUE, updated_at = NOW()
		 WHERE e.id = $1
		 RETURNING `+eventColumns,
		id,
	)

	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("cancel event: %w", err)
	}
	return e, nil
}

// SetEventImage сохраняет или заменяет изображение события.
func (q *Queries) SetEventImage(ctx context.Context, id int64, img model.EventImage) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE events SET image_data = $2, image_mimetype = $3, updated_at = NOW() WHERE id = $1`,
		id, img.Data, img.MimeType,
	)
	if err != nil {
		return fmt.Errorf("set event image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// GetEventImage возвращает изображение события.
func (q *Queries) GetEventImage(ctx context.Context, id int64) (*model.EventImage, error) {
	var (
		data     []byte
		mimeType *string
	)
	err := q.db.QueryRow(ctx,
		`SELECT image_data, image_mimetype FROM events WHERE id = $1`,
		id,
	).Scan(&data, &mimeType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event image: %w", err)
	}

	if data == nil {
		return nil, ErrImageNotFound
	}

	img := &model.EventImage{Data: data}
	if mimeType != nil {
		img.MimeType = *mimeType
	}
	return img, nil
}

// ClearEventImage удаляет изображение события.
func (q *Queries) ClearEventImage(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE events SET image_data = NULL, image_mimetype = NULL, updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("clear event image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

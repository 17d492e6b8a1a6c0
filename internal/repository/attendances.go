package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/ticketing-system/internal/model"
)

// CreateAttendance записывает участие пользователя в событии.
// Повтор для той же пары отсекается первичным ключом и возвращает ErrAttendanceExists.
func (q *Queries) CreateAttendance(ctx context.Context, userID, eventID int64) (*model.Attendance, error) {
	a := model.Attendance{UserID: userID, EventID: eventID}
	err := q.db.QueryRow(ctx,
		`INSERT INTO attendances (user_id, event_id) VALUES ($1, $2) RETURNING created_at`,
		userID, eventID,
	).Scan(&a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAttendanceExists
		}
		return nil, fmt.Errorf("insert attendance: %w", err)
	}
	return &a, nil
}

// EnsureAttendance записывает участие, если его ещё нет. Возвращает true, если строка была добавлена.
func (q *Queries) EnsureAttendance(ctx context.Context, userID, eventID int64) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`INSERT INTO attendances (user_id, event_id) VALUES ($1, $2) ON CONFLICT (user_id, event_id) DO NOTHING`,
		userID, eventID,
	)
	if err != nil {
		return false, fmt.Errorf("ensure attendance: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteAttendance удаляет участие пользователя в событии.
func (q *Queries) DeleteAttendance(ctx context.Context, userID, eventID int64) error {
	tag, err := q.db.Exec(ctx,
		`DELETE FROM attendances WHERE user_id = $1 AND event_id = $2`,
		userID, eventID,
	)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttendanceNotFound
	}
	return nil
}

// ListAttendedEvents возвращает события, в которых пользователь подтвердил участие.
func (q *Queries) ListAttendedEvents(ctx context.Context, userID int64) ([]model.Event, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM attendances a
		 JOIN events e ON e.id = a.event_id
		 WHERE a.user_id = $1
		 ORDER BY e.date ASC, e.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select attended events: %w", err)
	}
	defer rows.Close()

	var res []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		res = append(res, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

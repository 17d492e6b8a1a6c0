package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/ticketing-system/internal/model"
)

// CreatePurchase сохраняет покупку. Записи о покупках не изменяются и не удаляются.
func (q *Queries) CreatePurchase(ctx context.Context, p *model.Purchase) (*model.Purchase, error) {
	created := *p
	err := q.db.QueryRow(ctx,
		`INSERT INTO purchases (user_id, event_id, quantity, total_amount)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, purchased_at`,
		p.UserID, p.EventID, p.Quantity, p.TotalAmount,
	).Scan(&created.ID, &created.PurchasedAt)
	if err != nil {
		return nil, fmt.Errorf("insert purchase: %w", err)
	}
	return &created, nil
}

// HasPurchase сообщает, покупал ли пользователь билеты на событие.
func (q *Queries) HasPurchase(ctx context.Context, userID, eventID int64) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM purchases WHERE user_id = $1 AND event_id = $2)`,
		userID, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return exists, nil
}

// ListPurchasesByUser возвращает покупки пользователя, начиная с последней.
func (q *Queries) ListPurchasesByUser(ctx context.Context, userID int64) ([]model.PurchaseWithEvent, error) {
	rows, err := q.db.Query(ctx,
		`SELECT p.id, p.user_id, p.event_id, p.quantity, p.total_amount, p.purchased_at,
			`+eventColumns+`, u.id, u.username
		 FROM purchases p
		 JOIN events e ON e.id = p.event_id
		 JOIN users u ON u.id = e.creator_id
		 WHERE p.user_id = $1
		 ORDER BY p.purchased_at DESC, p.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select purchases: %w", err)
	}
	defer rows.Close()

	var res []model.PurchaseWithEvent
	for rows.Next() {
		var pw model.PurchaseWithEvent
		dest := []any{&pw.ID, &pw.UserID, &pw.EventID, &pw.Quantity, &pw.TotalAmount, &pw.PurchasedAt}
		dest = append(dest, eventDest(&pw.Event)...)
		dest = append(dest, &pw.Creator.ID, &pw.Creator.Username)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		res = append(res, pw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListPurchasesByEvent возвращает все покупки билетов на событие в порядке оформления.
func (q *Queries) ListPurchasesByEvent(ctx context.Context, eventID int64) ([]model.Purchase, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, user_id, event_id, quantity, total_amount, purchased_at
		 FROM purchases
		 WHERE event_id = $1
		 ORDER BY id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("select event purchases: %w", err)
	}
	defer rows.Close()

	var res []model.Purchase
	for rows.Next() {
		var p model.Purchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.EventID, &p.Quantity, &p.TotalAmount, &p.PurchasedAt); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

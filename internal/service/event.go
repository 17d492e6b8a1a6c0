package service

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/ticketing-system/internal/model"
	"github.com/mmeshcher/ticketing-system/internal/repository"
	"github.com/mmeshcher/ticketing-system/internal/validation"
)

// EventManager управляет жизненным циклом событий: создание, изменение и отмена с возвратом средств.
type EventManager struct {
	*deps
	balances   *BalanceService
	attendance *AttendanceManager
}

// CreateEvent создаёт событие от имени creatorID. Создатель бесплатного события сразу
// становится его участником.
func (m *EventManager) CreateEvent(ctx context.Context, creatorID int64, in model.EventInput) (*model.Event, error) {
	event := &model.Event{
		Title:            strings.TrimSpace(in.Title),
		Date:             in.Date,
		ShortDescription: strings.TrimSpace(in.ShortDescription),
		FullDescription:  strings.TrimSpace(in.FullDescription),
		Location:         strings.TrimSpace(in.Location),
		Category:         in.Category,
		IsPaid:           in.IsPaid,
		CreatorID:        creatorID,
	}
	if in.IsPaid {
		event.Price = in.Price
	}

	if err := m.validate(event, true); err != nil {
		return nil, err
	}
	image, err := normalizeImage(in.Image)
	if err != nil {
		return nil, err
	}

	var created *model.Event
	err = m.repo.WithTx(ctx, func(tx repository.Ledger) error {
		if _, err := tx.GetUserByID(ctx, creatorID); err != nil {
			return err
		}

		var err error
		created, err = tx.CreateEvent(ctx, event)
		if err != nil {
			return err
		}

		if image != nil {
			if err := tx.SetEventImage(ctx, created.ID, *image); err != nil {
				return err
			}
			created.HasImage = true
		}

		if !created.IsPaid {
			_, err = m.attendance.confirm(ctx, tx, creatorID, created.ID)
		}
		return err
	})
	if err != nil {
		return nil, wrap("create event", err)
	}

	m.logger.Info("event created",
		zap.Int64("event_id", created.ID),
		zap.Int64("creator_id", creatorID),
		zap.Stringer("state", created.State()),
	)
	return created, nil
}

// UpdateEvent применяет patch к событию. Изменять событие может только создатель,
// отменённые события не изменяются.
func (m *EventManager) UpdateEvent(ctx context.Context, eventID, requesterID int64, patch model.EventPatch) (*model.Event, error) {
	image, err := normalizeImage(patch.Image)
	if err != nil {
		return nil, err
	}

	var updated *model.Event
	err = m.repo.WithTx(ctx, func(tx repository.Ledger) error {
		event, err := tx.LockEvent(ctx, eventID, repository.LockUpdate)
		if err != nil {
			return err
		}
		if event.CreatorID != requesterID {
			return ErrNotCreator
		}
		if event.IsCancelled {
			return ErrEventCancelled
		}
		if patch.IsPaid != nil && *patch.IsPaid != event.IsPaid {
			return ErrPaymentModeLocked
		}
		if patch.Price.Valid && !event.IsPaid {
			return ErrInvalidPrice
		}

		applyPatch(event, patch)
		if err := m.validate(event, patch.Date != nil); err != nil {
			return err
		}

		updated, err = tx.UpdateEvent(ctx, event)
		if err != nil || image == nil {
			return err
		}

		if err := tx.SetEventImage(ctx, eventID, *image); err != nil {
			return err
		}
		updated.HasImage = true
		return nil
	})
	if err != nil {
		return nil, wrap("update event", err)
	}
	return updated, nil
}

// CancelEvent отменяет событие и возвращает каждому покупателю полную стоимость его билетов.
// Отмена и все возвраты фиксируются одной транзакцией.
func (m *EventManager) CancelEvent(ctx context.Context, eventID, requesterID int64) (*model.Cancellation, error) {
	var res *model.Cancellation
	err := m.repo.WithTx(ctx, func(tx repository.Ledger) error {
		event, err := tx.LockEvent(ctx, eventID, repository.LockUpdate)
		if err != nil {
			return err
		}
		if event.CreatorID != requesterID {
			return ErrNotCreator
		}

		state := event.State()
		if state == model.EventStateCancelled {
			return ErrEventCancelled
		}

		cancelled, err := tx.MarkEventCancelled(ctx, eventID)
		if err != nil {
			return err
		}

		res = &model.Cancellation{Event: *cancelled, Refunds: []model.Refund{}, Total: decimal.Zero}
		if state != model.EventStatePaid {
			return nil
		}

		purchases, err := tx.ListPurchasesByEvent(ctx, eventID)
		if err != nil {
			return err
		}

		for _, r := range aggregateRefunds(purchases) {
			if _, err := m.balances.credit(ctx, tx, r.UserID, r.Amount); err != nil {
				return err
			}
			res.Refunds = append(res.Refunds, r)
			res.Total = res.Total.Add(r.Amount)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("cancel event", err)
	}

	m.logger.Info("event cancelled",
		zap.Int64("event_id", eventID),
		zap.Int("refunds", len(res.Refunds)),
		zap.String("total_refunded", res.Total.StringFixed(2)),
	)
	m.publish(ctx, model.Notification{
		Type:    model.NotificationEventCancelled,
		UserID:  requesterID,
		EventID: eventID,
		Amount:  res.Total,
		Refunds: res.Refunds,
	})

	return res, nil
}

// GetEvent возвращает событие с создателем и счётчиками.
func (m *EventManager) GetEvent(ctx context.Context, eventID int64) (*model.EventDetails, error) {
	d, err := m.repo.GetEventDetails(ctx, eventID)
	if err != nil {
		return nil, wrap("get event", err)
	}
	return d, nil
}

// ListEvents возвращает предстоящие неотменённые события, подходящие под фильтр.
func (m *EventManager) ListEvents(ctx context.Context, filter model.EventFilter) ([]model.EventDetails, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, invalidInput("invalid_category", "unknown event category")
	}
	filter.From = m.now()

	events, err := m.repo.ListEvents(ctx, filter)
	if err != nil {
		return nil, wrap("list events", err)
	}
	if events == nil {
		events = []model.EventDetails{}
	}
	return events, nil
}

// GetUserEvents возвращает бесплатные события, в которых участвует пользователь,
// и платные события, на которые он купил билеты.
func (m *EventManager) GetUserEvents(ctx context.Context, userID int64) (*model.UserEvents, error) {
	attended, err := m.repo.ListAttendedEvents(ctx, userID)
	if err != nil {
		return nil, wrap("list user events", err)
	}

	purchases, err := m.repo.ListPurchasesByUser(ctx, userID)
	if err != nil {
		return nil, wrap("list user events", err)
	}

	res := &model.UserEvents{FreeEvents: []model.Event{}, PaidEvents: []model.PaidEvent{}}
	for _, e := range attended {
		if !e.IsPaid {
			res.FreeEvents = append(res.FreeEvents, e)
		}
	}

	index := make(map[int64]int)
	for _, p := range purchases {
		i, ok := index[p.EventID]
		if !ok {
			index[p.EventID] = len(res.PaidEvents)
			res.PaidEvents = append(res.PaidEvents, model.PaidEvent{
				Event:     p.Event,
				Quantity:  p.Quantity,
				TotalPaid: p.TotalAmount,
			})
			continue
		}
		res.PaidEvents[i].Quantity += p.Quantity
		res.PaidEvents[i].TotalPaid = res.PaidEvents[i].TotalPaid.Add(p.TotalAmount)
	}

	return res, nil
}

// SetEventImage сохраняет или заменяет изображение события.
func (m *EventManager) SetEventImage(ctx context.Context, eventID, requesterID int64, img model.EventImage) error {
	image, err := normalizeImage(&img)
	if err != nil {
		return err
	}

	err = m.modifyOwned(ctx, eventID, requesterID, func(tx repository.Ledger) error {
		return tx.SetEventImage(ctx, eventID, *image)
	})
	return wrap("set event image", err)
}

// DeleteEventImage удаляет изображение события.
func (m *EventManager) DeleteEventImage(ctx context.Context, eventID, requesterID int64) error {
	err := m.modifyOwned(ctx, eventID, requesterID, func(tx repository.Ledger) error {
		return tx.ClearEventImage(ctx, eventID)
	})
	return wrap("delete event image", err)
}

// GetEventImage возвращает изображение события.
func (m *EventManager) GetEventImage(ctx context.Context, eventID int64) (*model.EventImage, error) {
	img, err := m.repo.GetEventImage(ctx, eventID)
	if err != nil {
		return nil, wrap("get event image", err)
	}
	return img, nil
}

// modifyOwned выполняет fn под блокировкой события, если requesterID его создатель
// и событие не отменено.
func (m *EventManager) modifyOwned(ctx context.Context, eventID, requesterID int64, fn func(repository.Ledger) error) error {
	return m.repo.WithTx(ctx, func(tx repository.Ledger) error {
		event, err := tx.LockEvent(ctx, eventID, repository.LockUpdate)
		if err != nil {
			return err
		}
		if event.CreatorID != requesterID {
			return ErrNotCreator
		}
		if event.IsCancelled {
			return ErrEventCancelled
		}
		return fn(tx)
	})
}

// validate проверяет поля события. Дата проверяется, только если checkDate:
// уже прошедшее событие можно изменить без переноса даты.
func (m *EventManager) validate(e *model.Event, checkDate bool) error {
	switch {
	case e.Title == "":
		return invalidInput("invalid_title", "title is required")
	case e.Location == "":
		return invalidInput("invalid_location", "location is required")
	case !e.Category.Valid():
		return invalidInput("invalid_category", "unknown event category")
	case checkDate && !e.Date.After(m.now()):
		return ErrPastDate
	}

	if e.IsPaid != e.Price.Valid {
		return ErrInvalidPrice
	}
	if e.IsPaid && !validAmount(e.Price.Decimal) {
		return ErrInvalidPrice
	}
	return nil
}

// normalizeImage проверяет тип и размер изображения. nil означает, что изображение не передано.
func normalizeImage(img *model.EventImage) (*model.EventImage, error) {
	if img == nil {
		return nil, nil
	}
	if !validation.IsValidImage(img.MimeType, len(img.Data)) {
		return nil, ErrInvalidImage
	}
	return &model.EventImage{Data: img.Data, MimeType: strings.ToLower(img.MimeType)}, nil
}

func applyPatch(e *model.Event, p model.EventPatch) {
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.ShortDescription != nil {
		e.ShortDescription = strings.TrimSpace(*p.ShortDescription)
	}
	if p.FullDescription != nil {
		e.FullDescription = strings.TrimSpace(*p.FullDescription)
	}
	if p.Location != nil {
		e.Location = strings.TrimSpace(*p.Location)
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Price.Valid {
		e.Price = p.Price
	}
}

// aggregateRefunds суммирует покупки по пользователям. Результат упорядочен по идентификатору
// пользователя, чтобы параллельные отмены блокировали строки пользователей в одном порядке.
func aggregateRefunds(purchases []model.Purchase) []model.Refund {
	totals := make(map[int64]decimal.Decimal)
	for _, p := range purchases {
		totals[p.UserID] = totals[p.UserID].Add(p.TotalAmount)
	}

	refunds := make([]model.Refund, 0, len(totals))
	for userID, amount := range totals {
		refunds = append(refunds, model.Refund{UserID: userID, Amount: amount})
	}
	slices.SortFunc(refunds, func(a, b model.Refund) int {
		return cmp.Compare(a.UserID, b.UserID)
	})
	return refunds
}

package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmeshcher/ticketing-system/internal/model"
	"github.com/mmeshcher/ticketing-system/internal/repository"
)

// AttendanceManager управляет подтверждением участия в бесплатных событиях.
type AttendanceManager struct {
	*deps
}

// ConfirmAttendance подтверждает участие пользователя в бесплатном событии.
func (m *AttendanceManager) ConfirmAttendance(ctx context.Context, userID, eventID int64) (*model.Attendance, error) {
	var att *model.Attendance
	err := m.repo.WithTx(ctx, func(tx repository.Ledger) error {
		event, err := tx.LockEvent(ctx, eventID, repository.LockShare)
		if err != nil {
			return err
		}
		if event.IsPaid {
			return ErrPaymentRequired
		}
		if event.IsCancelled {
			return ErrEventCancelled
		}
		if _, err := tx.GetUserByID(ctx, userID); err != nil {
			return err
		}

		att, err = m.confirm(ctx, tx, userID, eventID)
		return err
	})
	if err != nil {
		return nil, wrap("confirm attendance", err)
	}

	m.publish(ctx, model.Notification{
		Type:    model.NotificationAttendanceConfirmed,
		UserID:  userID,
		EventID: eventID,
	})

	return att, nil
}

// CancelAttendance отменяет участие пользователя. Создатель события и владельцы купленных билетов
// отменить участие не могут.
func (m *AttendanceManager) CancelAttendance(ctx context.Context, userID, eventID int64) error {
	err := m.repo.WithTx(ctx, func(tx repository.Ledger) error {
		event, err := tx.LockEvent(ctx, eventID, repository.LockShare)
		if err != nil {
			return err
		}
		if event.CreatorID == userID {
			return ErrCreatorCannotCancel
		}

		purchased, err := tx.HasPurchase(ctx, userID, eventID)
		if err != nil {
			return err
		}
		if purchased {
			return ErrTicketsPurchased
		}

		return tx.DeleteAttendance(ctx, userID, eventID)
	})
	if err != nil {
		return wrap("cancel attendance", err)
	}

	m.logger.Debug("attendance cancelled", zap.Int64("user_id", userID), zap.Int64("event_id", eventID))
	m.publish(ctx, model.Notification{
		Type:    model.NotificationAttendanceCancelled,
		UserID:  userID,
		EventID: eventID,
	})

	return nil
}

// GetUserAttendances возвращает события, в которых пользователь подтвердил участие.
func (m *AttendanceManager) GetUserAttendances(ctx context.Context, userID int64) ([]model.Event, error) {
	events, err := m.repo.ListAttendedEvents(ctx, userID)
	if err != nil {
		return nil, wrap("list attendances", err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// confirm записывает участие в рамках транзакции вызывающего.
func (m *AttendanceManager) confirm(ctx context.Context, tx repository.Ledger, userID, eventID int64) (*model.Attendance, error) {
	return tx.CreateAttendance(ctx, userID, eventID)
}

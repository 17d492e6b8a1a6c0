package service

import (
	"context"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/ticketing-system/internal/model"
	"github.com/mmeshcher/ticketing-system/internal/repository"
)

// PurchaseManager оформляет покупку билетов на платные события.
type PurchaseManager struct {
	*deps
	balances *BalanceService
}

// PurchaseTickets покупает quantity билетов на платное событие. Списание средств, запись о покупке
// и участие фиксируются одной транзакцией под блокировкой строки события.
func (m *PurchaseManager) PurchaseTickets(ctx context.Context, userID, eventID int64, quantity int) (*model.PurchaseWithEvent, error) {
	if quantity < 1 || quantity > math.MaxInt32 {
		return nil, ErrInvalidQuantity
	}

	var res *model.PurchaseWithEvent
	err := m.repo.WithTx(ctx, func(tx repository.Ledger) error {
		event, err := tx.LockEvent(ctx, eventID, repository.LockUpdate)
		if err != nil {
			return err
		}
		if !event.IsPaid {
			return ErrEventNotPaid
		}
		if event.IsCancelled {
			return ErrEventCancelled
		}
		if !event.Price.Valid || !event.Price.Decimal.IsPositive() {
			return ErrPriceNotConfigured
		}

		user, err := tx.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}

		total := event.Price.Decimal.Mul(decimal.NewFromInt(int64(quantity)))
		if user.Balance.LessThan(total) {
			return ErrInsufficientFunds
		}

		if _, err := m.balances.debit(ctx, tx, userID, total); err != nil {
			return err
		}

		purchase, err := tx.CreatePurchase(ctx, &model.Purchase{
			UserID:      userID,
			EventID:     eventID,
			Quantity:    quantity,
			TotalAmount: total,
		})
		if err != nil {
			return err
		}

		if _, err := tx.EnsureAttendance(ctx, userID, eventID); err != nil {
			return err
		}

		res = &model.PurchaseWithEvent{
			Purchase: *purchase,
			Event:    *event,
			Creator:  model.UserSummary{ID: event.CreatorID},
		}
		return nil
	})
	if err != nil {
		return nil, wrap("purchase tickets", err)
	}

	m.logger.Info("tickets purchased",
		zap.Int64("user_id", userID),
		zap.Int64("event_id", eventID),
		zap.Int("quantity", quantity),
		zap.String("total", res.TotalAmount.StringFixed(2)),
	)
	m.publish(ctx, model.Notification{
		Type:     model.NotificationPurchaseCreated,
		UserID:   userID,
		EventID:  eventID,
		Quantity: quantity,
		Amount:   res.TotalAmount,
	})

	return res, nil
}

// GetUserPurchases возвращает покупки пользователя, начиная с последней.
func (m *PurchaseManager) GetUserPurchases(ctx context.Context, userID int64) ([]model.PurchaseWithEvent, error) {
	purchases, err := m.repo.ListPurchasesByUser(ctx, userID)
	if err != nil {
		return nil, wrap("list purchases", err)
	}
	if purchases == nil {
		purchases = []model.PurchaseWithEvent{}
	}
	return purchases, nil
}

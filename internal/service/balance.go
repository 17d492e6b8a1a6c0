package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/ticketing-system/internal/model"
	"github.com/mmeshcher/ticketing-system/internal/repository"
)

// maxAmount ограничивает сверху отдельные суммы и баланс после пополнения.
// Возвраты при отмене события зачисляются без этого ограничения.
var maxAmount = decimal.New(1, 12)

// validAmount проверяет, что сумма положительна и содержит не более двух знаков после запятой.
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.LessThan(maxAmount) && amount.Equal(amount.Round(2))
}

// BalanceService управляет виртуальным балансом пользователей.
type BalanceService struct {
	*deps
}

// Credit пополняет баланс активного пользователя и возвращает новое значение.
// Пополнение, после которого баланс достиг бы maxAmount, отклоняется с ErrBalanceLimit.
func (b *BalanceService) Credit(ctx context.Context, userID int64, amount decimal.Decimal) (*model.Balance, error) {
	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}

	balance, err := b.repo.TopUpBalance(ctx, userID, amount, maxAmount)
	if err != nil {
		return nil, wrap("credit balance", err)
	}

	return &model.Balance{Current: balance}, nil
}

// GetBalance возвращает текущий баланс пользователя.
func (b *BalanceService) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	u, err := b.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, wrap("get balance", err)
	}
	return &model.Balance{Current: u.Balance}, nil
}

// credit зачисляет сумму в рамках транзакции вызывающего.
func (b *BalanceService) credit(ctx context.Context, tx repository.Ledger, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	return tx.CreditBalance(ctx, userID, amount)
}

// debit списывает сумму в рамках транзакции вызывающего, если баланса достаточно.
func (b *BalanceService) debit(ctx context.Context, tx repository.Ledger, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return tx.DebitBalance(ctx, userID, amount)
}

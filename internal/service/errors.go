package service

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/ticketing-system/internal/repository"
)

// Kind классифицирует ошибки бизнес-логики для транспортного слоя.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindUnauthenticated
	KindNotFound
	KindForbidden
	KindConflict
	KindInsufficientFunds
	KindIllegalState
	KindTransactionFailed
)

// Error описывает ошибку бизнес-логики с машинно-читаемым кодом.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// invalidInput создаёт ошибку валидации, не совпадающую ни с одной из сигнальных.
func invalidInput(code, message string) *Error {
	return newError(KindInvalidInput, code, message)
}

var (
	ErrInvalidAmount      = newError(KindInvalidInput, "invalid_amount", "amount must be positive with at most two decimal places")
	ErrInvalidQuantity    = newError(KindInvalidInput, "invalid_quantity", "quantity must be at least 1")
	ErrPastDate           = newError(KindInvalidInput, "past_date", "event date must be in the future")
	ErrInvalidPrice       = newError(KindInvalidInput, "invalid_price", "paid events require a positive price, free events must not have one")
	ErrPaymentModeLocked  = newError(KindInvalidInput, "payment_mode_locked", "payment mode cannot be changed after creation")
	ErrInvalidImage       = newError(KindInvalidInput, "invalid_image", "image must be jpeg, png, webp or gif up to 5MB")
	ErrBalanceLimit       = newError(KindInvalidInput, "balance_limit_exceeded", "balance after top-up must stay below 1000000000000")
	ErrInvalidCredentials = newError(KindUnauthenticated, "invalid_credentials", "invalid email or password")

	ErrUserNotFound  = newError(KindNotFound, "user_not_found", "user not found")
	ErrEventNotFound = newError(KindNotFound, "event_not_found", "event not found")
	ErrImageNotFound = newError(KindNotFound, "image_not_found", "event has no image")

	ErrNotCreator          = newError(KindForbidden, "not_creator", "only the event creator can do this")
	ErrCreatorCannotCancel = newError(KindForbidden, "creator_cannot_cancel", "the event creator cannot cancel their attendance")

	ErrUserExists       = newError(KindConflict, "user_exists", "username, email or DNI already registered")
	ErrAlreadyConfirmed = newError(KindConflict, "already_confirmed", "attendance already confirmed")
	ErrTicketsPurchased = newError(KindConflict, "tickets_purchased", "attendance backed by purchased tickets cannot be cancelled")

	ErrInsufficientFunds = newError(KindInsufficientFunds, "insufficient_funds", "insufficient balance")

	ErrPaymentRequired    = newError(KindIllegalState, "payment_required", "this event is paid, purchase tickets instead")
	ErrEventNotPaid       = newError(KindIllegalState, "event_not_paid", "this event is free, confirm attendance instead")
	ErrEventCancelled     = newError(KindIllegalState, "event_cancelled", "event is cancelled")
	ErrNotConfirmed       = newError(KindIllegalState, "not_confirmed", "attendance is not confirmed")
	ErrPriceNotConfigured = newError(KindIllegalState, "price_not_configured", "event price is not configured")

	ErrTransactionFailed = newError(KindTransactionFailed, "transaction_failed", "operation conflicted with a concurrent update, retry")
)

// translate переводит ошибки хранилища в ошибки бизнес-логики.
// Неизвестные ошибки возвращаются без изменений.
func translate(err error) error {
	var svcErr *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &svcErr):
		return svcErr
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrUserExists):
		return ErrUserExists
	case errors.Is(err, repository.ErrEventNotFound):
		return ErrEventNotFound
	case errors.Is(err, repository.ErrImageNotFound):
		return ErrImageNotFound
	case errors.Is(err, repository.ErrBalanceLimit):
		return ErrBalanceLimit
	case errors.Is(err, repository.ErrInsufficientBalance):
		return ErrInsufficientFunds
	case errors.Is(err, repository.ErrAttendanceExists):
		return ErrAlreadyConfirmed
	case errors.Is(err, repository.ErrAttendanceNotFound):
		return ErrNotConfirmed
	case errors.Is(err, repository.ErrTxAborted):
		return ErrTransactionFailed
	}
	return err
}

// KindOf возвращает класс ошибки или 0, если ошибка не классифицирована.
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return 0
}

// wrap классифицирует ошибку или добавляет к ней имя операции.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	translated := translate(err)
	if KindOf(translated) != 0 {
		return translated
	}
	return fmt.Errorf("%s: %w", op, err)
}

package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/ticketing-system/internal/model"
)

// Ledger описывает операции над пользователями, событиями, участием и покупками.
// Реализуется *Queries как вне транзакции, так и внутри неё (см. PostgresRepository.WithTx).
type Ledger interface {
	CreateUser(ctx context.Context, u *model.User) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	SoftDeleteUser(ctx context.Context, id int64) error
	CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
	TopUpBalance(ctx context.Context, userID int64, amount, limit decimal.Decimal) (decimal.Decimal, error)
	DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)

	CreateEvent(ctx context.Context, e *model.Event) (*model.Event, error)
	GetEvent(ctx context.Context, id int64) (*model.Event, error)
	LockEvent(ctx context.Context, id int64, mode LockMode) (*model.Event, error)
	GetEventDetails(ctx context.Context, id int64) (*model.EventDetails, error)
	ListEvents(ctx context.Context, f model.EventFilter) ([]model.EventDetails, error)
	UpdateEvent(ctx context.Context, e *model.Event) (*model.Event, error)
	MarkEventCancelled(ctx context.Context, id int64) (*model.Event, error)
	SetEventImage(ctx context.Context, id int64, img model.EventImage) error
	GetEventImage(ctx context.Context, id int64) (*model.EventImage, error)
	ClearEventImage(ctx context.Context, id int64) error

	CreateAttendance(ctx context.Context, userID, eventID int64) (*model.Attendance, error)
	EnsureAttendance(ctx context.Context, userID, eventID int64) (bool, error)
	DeleteAttendance(ctx context.Context, userID, eventID int64) error
	ListAttendedEvents(ctx context.Context, userID int64) ([]model.Event, error)

	CreatePurchase(ctx context.Context, p *model.Purchase) (*model.Purchase, error)
	HasPurchase(ctx context.Context, userID, eventID int64) (bool, error)
	ListPurchasesByUser(ctx context.Context, userID int64) ([]model.PurchaseWithEvent, error)
	ListPurchasesByEvent(ctx context.Context, eventID int64) ([]model.Purchase, error)
}

var _ Ledger = (*Queries)(nil)

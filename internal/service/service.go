// Package service реализует бизнес-логику продажи билетов: баланс, участие, покупки и жизненный цикл событий.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/ticketing-system/internal/model"
	"github.com/mmeshcher/ticketing-system/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	repository.Ledger
	WithTx(ctx context.Context, fn func(repository.Ledger) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Notifier доставляет уведомления о доменных событиях после фиксации транзакции.
// Ошибки доставки не влияют на результат операции.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.Notification) {}

// deps содержит зависимости, общие для всех менеджеров.
type deps struct {
	repo     Repository
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func (d *deps) publish(ctx context.Context, n model.Notification) {
	n.ID = uuid.NewString()
	n.OccurredAt = d.now().UTC()
	d.notifier.Notify(ctx, n)
}

// Service объединяет менеджеры бизнес-логики.
type Service struct {
	*UserManager
	*BalanceService
	*AttendanceManager
	*PurchaseManager
	*EventManager

	repo Repository
}

// NewService создаёт сервис с указанным репозиторием, отправителем уведомлений и логгером.
// notifier и logger могут быть nil.
func NewService(repo Repository, notifier Notifier, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &deps{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}

	balances := &BalanceService{deps: d}
	attendance := &AttendanceManager{deps: d}

	return &Service{
		UserManager:       &UserManager{deps: d, hasher: BcryptHasher{}},
		BalanceService:    balances,
		AttendanceManager: attendance,
		PurchaseManager:   &PurchaseManager{deps: d, balances: balances},
		EventManager:      &EventManager{deps: d, balances: balances, attendance: attendance},
		repo:              repo,
	}
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

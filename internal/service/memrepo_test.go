package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/ticketing-system/internal/model"
	"github.com/mmeshcher/ticketing-system/internal/repository"
)

var testNow = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

type attKey struct {
	userID, eventID int64
}

type memState struct {
	users        map[int64]model.User
	events       map[int64]model.Event
	images       map[int64]model.EventImage
	attendances  map[attKey]time.Time
	purchases    []model.Purchase
	nextUser     int64
	nextEvent    int64
	nextPurchase int64
}

func newMemState() *memState {
	return &memState{
		users:       map[int64]model.User{},
		events:      map[int64]model.Event{},
		images:      map[int64]model.EventImage{},
		attendances: map[attKey]time.Time{},
	}
}

func (s *memState) clone() *memState {
	return &memState{
		users:        maps.Clone(s.users),
		events:       maps.Clone(s.events),
		images:       maps.Clone(s.images),
		attendances:  maps.Clone(s.attendances),
		purchases:    slices.Clone(s.purchases),
		nextUser:     s.nextUser,
		nextEvent:    s.nextEvent,
		nextPurchase: s.nextPurchase,
	}
}

// memLedger реализует repository.Ledger поверх памяти с семантикой ограничений PostgreSQL.
type memLedger struct {
	st               *memState
	failPurchaseWith error
}

var _ repository.Ledger = (*memLedger)(nil)

func (l *memLedger) CreateUser(_ context.Context, u *model.User) (*model.User, error) {
	for _, existing := range l.st.users {
		if existing.Username == u.Username || existing.Email == u.Email || existing.NationalID == u.NationalID {
			return nil, repository.ErrUserExists
		}
	}
	l.st.nextUser++
	created := *u
	created.ID = l.st.nextUser
	created.Balance = decimal.Zero
	created.CreatedAt = testNow
	l.st.users[created.ID] = created
	return &created, nil
}

func (l *memLedger) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := l.st.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (l *memLedger) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range l.st.users {
		if u.Email == email && u.DeletedAt == nil {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (l *memLedger) SoftDeleteUser(_ context.Context, id int64) error {
	u, ok := l.st.users[id]
	if !ok || u.DeletedAt != nil {
		return repository.ErrUserNotFound
	}
	deletedAt := testNow
	u.DeletedAt = &deletedAt
	l.st.users[id] = u
	return nil
}

func (l *memLedger) CreditBalance(_ context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	u, ok := l.st.users[userID]
	if !ok {
		return decimal.Zero, repository.ErrUserNotFound
	}
	u.Balance = u.Balance.Add(amount)
	l.st.users[userID] = u
	return u.Balance, nil
}

func (l *memLedger) TopUpBalance(ctx context.Context, userID int64, amount, limit decimal.Decimal) (decimal.Decimal, error) {
	u, err := l.GetUserByID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if !u.Balance.Add(amount).LessThan(limit) {
		return decimal.Zero, repository.ErrBalanceLimit
	}
	u.Balance = u.Balance.Add(amount)
	l.st.users[userID] = *u
	return u.Balance, nil
}

func (l *memLedger) DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	u, err := l.GetUserByID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if u.Balance.LessThan(amount) {
		return decimal.Zero, repository.ErrInsufficientBalance
	}
	u.Balance = u.Balance.Sub(amount)
	l.st.users[userID] = *u
	return u.Balance, nil
}

func (l *memLedger) CreateEvent(_ context.Context, e *model.Event) (*model.Event, error) {
	l.st.nextEvent++
	created := *e
	created.ID = l.st.nextEvent
	created.CreatedAt = testNow
	created.UpdatedAt = testNow
	l.st.events[created.ID] = created
	return &created, nil
}

func (l *memLedger) GetEvent(_ context.Context, id int64) (*model.Event, error) {
	e, ok := l.st.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	return &e, nil
}

func (l *memLedger) LockEvent(ctx context.Context, id int64, _ repository.LockMode) (*model.Event, error) {
	return l.GetEvent(ctx, id)
}

func (l *memLedger) details(e model.Event) model.EventDetails {
	d := model.EventDetails{Event: e}
	creator := l.st.users[e.CreatorID]
	d.Creator = model.UserSummary{ID: creator.ID, Username: creator.Username, FirstName: creator.FirstName, LastName: creator.LastName}
	for k := range l.st.attendances {
		if k.eventID == e.ID {
			d.AttendanceCount++
		}
	}
	for _, p := range l.st.purchases {
		if p.EventID == e.ID {
			d.PurchaseCount++
		}
	}
	return d
}

func (l *memLedger) GetEventDetails(_ context.Context, id int64) (*model.EventDetails, error) {
	e, ok := l.st.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	d := l.details(e)
	return &d, nil
}

func (l *memLedger) ListEvents(_ context.Context, f model.EventFilter) ([]model.EventDetails, error) {
	var res []model.EventDetails
	for _, id := range slices.Sorted(maps.Keys(l.st.events)) {
		e := l.st.events[id]
		switch {
		case e.IsCancelled, e.Date.Before(f.From):
			continue
		case f.Category != "" && e.Category != f.Category:
			continue
		case f.IsPaid != nil && e.IsPaid != *f.IsPaid:
			continue
		case f.Search != "" && !strings.Contains(strings.ToLower(e.Title+" "+e.ShortDescription), strings.ToLower(f.Search)):
			continue
		}
		res = append(res, l.details(e))
	}
	slices.SortStableFunc(res, func(a, b model.EventDetails) int { return a.Date.Compare(b.Date) })
	return res, nil
}

func (l *memLedger) UpdateEvent(_ context.Context, e *model.Event) (*model.Event, error) {
	if _, ok := l.st.events[e.ID]; !ok {
		return nil, repository.ErrEventNotFound
	}
	updated := *e
	updated.UpdatedAt = testNow
	l.st.events[e.ID] = updated
	return &updated, nil
}

func (l *memLedger) MarkEventCancelled(_ context.Context, id int64) (*model.Event, error) {
	e, ok := l.st.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	e.IsCancelled = true
	l.st.events[id] = e
	return &e, nil
}

func (l *memLedger) SetEventImage(_ context.Context, id int64, img model.EventImage) error {
	e, ok := l.st.events[id]
	if !ok {
		return repository.ErrEventNotFound
	}
	e.HasImage = true
	l.st.events[id] = e
	l.st.images[id] = img
	return nil
}

func (l *memLedger) GetEventImage(_ context.Context, id int64) (*model.EventImage, error) {
	if _, ok := l.st.events[id]; !ok {
		return nil, repository.ErrEventNotFound
	}
	img, ok := l.st.images[id]
	if !ok {
		return nil, repository.ErrImageNotFound
	}
	return &img, nil
}

func (l *memLedger) ClearEventImage(_ context.Context, id int64) error {
	e, ok := l.st.events[id]
	if !ok {
		return repository.ErrEventNotFound
	}
	e.HasImage = false
	l.st.events[id] = e
	delete(l.st.images, id)
	return nil
}

func (l *memLedger) CreateAttendance(_ context.Context, userID, eventID int64) (*model.Attendance, error) {
	k := attKey{userID, eventID}
	if _, ok := l.st.attendances[k]; ok {
		return nil, repository.ErrAttendanceExists
	}
	l.st.attendances[k] = testNow
	return &model.Attendance{UserID: userID, EventID: eventID, CreatedAt: testNow}, nil
}

func (l *memLedger) EnsureAttendance(ctx context.Context, userID, eventID int64) (bool, error) {
	_, err := l.CreateAttendance(ctx, userID, eventID)
	if errors.Is(err, repository.ErrAttendanceExists) {
		return false, nil
	}
	return err == nil, err
}

func (l *memLedger) DeleteAttendance(_ context.Context, userID, eventID int64) error {
	k := attKey{userID, eventID}
	if _, ok := l.st.attendances[k]; !ok {
		return repository.ErrAttendanceNotFound
	}
	delete(l.st.attendances, k)
	return nil
}

func (l *memLedger) ListAttendedEvents(_ context.Context, userID int64) ([]model.Event, error) {
	var res []model.Event
	for _, id := range slices.Sorted(maps.Keys(l.st.events)) {
		if _, ok := l.st.attendances[attKey{userID, id}]; ok {
			res = append(res, l.st.events[id])
		}
	}
	return res, nil
}

func (l *memLedger) CreatePurchase(_ context.Context, p *model.Purchase) (*model.Purchase, error) {
	if l.failPurchaseWith != nil {
		return nil, l.failPurchaseWith
	}
	l.st.nextPurchase++
	created := *p
	created.ID = l.st.nextPurchase
	created.PurchasedAt = testNow
	l.st.purchases = append(l.st.purchases, created)
	return &created, nil
}

func (l *memLedger) HasPurchase(_ context.Context, userID, eventID int64) (bool, error) {
	return slices.ContainsFunc(l.st.purchases, func(p model.Purchase) bool {
		return p.UserID == userID && p.EventID == eventID
	}), nil
}

func (l *memLedger) ListPurchasesByUser(_ context.Context, userID int64) ([]model.PurchaseWithEvent, error) {
	var res []model.PurchaseWithEvent
	for _, p := range slices.Backward(l.st.purchases) {
		if p.UserID != userID {
			continue
		}
		e := l.st.events[p.EventID]
		creator := l.st.users[e.CreatorID]
		res = append(res, model.PurchaseWithEvent{
			Purchase: p,
			Event:    e,
			Creator:  model.UserSummary{ID: creator.ID, Username: creator.Username},
		})
	}
	return res, nil
}

func (l *memLedger) ListPurchasesByEvent(_ context.Context, eventID int64) ([]model.Purchase, error) {
	var res []model.Purchase
	for _, p := range l.st.purchases {
		if p.EventID == eventID {
			res = append(res, p)
		}
	}
	return res, nil
}

// memRepo сериализует транзакции и откатывает их, отбрасывая рабочую копию состояния.
type memRepo struct {
	*memLedger
	mu    sync.Mutex
	txErr error
	txs   int
}

func newMemRepo() *memRepo {
	return &memRepo{memLedger: &memLedger{st: newMemState()}}
}

func (r *memRepo) WithTx(_ context.Context, fn func(repository.Ledger) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.txs++
	if r.txErr != nil {
		return r.txErr
	}

	work := &memLedger{st: r.st.clone(), failPurchaseWith: r.failPurchaseWith}
	if err := fn(work); err != nil {
		return err
	}
	r.st = work.st
	return nil
}

// TopUpBalance выполняется вне транзакции, как одиночный UPDATE в хранилище.
func (r *memRepo) TopUpBalance(ctx context.Context, userID int64, amount, limit decimal.Decimal) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memLedger.TopUpBalance(ctx, userID, amount, limit)
}

func (r *memRepo) Ping(context.Context) error { return nil }

func (r *memRepo) Close() error { return nil }

func (r *memRepo) balance(t *testing.T, userID int64) decimal.Decimal {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.users[userID].Balance
}

func (r *memRepo) attending(userID, eventID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.st.attendances[attKey{userID, eventID}]
	return ok
}

func (r *memRepo) purchaseCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.st.purchases)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg model.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *recordingNotifier) types() []model.NotificationType {
	n.mu.Lock()
	defer n.mu.Unlock()
	res := make([]model.NotificationType, 0, len(n.sent))
	for _, msg := range n.sent {
		res = append(res, msg.Type)
	}
	return res
}

func newTestService(t *testing.T) (*Service, *memRepo, *recordingNotifier) {
	t.Helper()

	repo := newMemRepo()
	notifier := &recordingNotifier{}
	svc := NewService(repo, notifier, zap.NewNop())
	svc.UserManager.hasher = BcryptHasher{Cost: bcrypt.MinCost}
	svc.UserManager.now = func() time.Time { return testNow }

	return svc, repo, notifier
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var dniSeq atomic.Int64

// seedUser создаёт пользователя с указанным балансом.
func seedUser(t *testing.T, svc *Service, name, balance string) int64 {
	t.Helper()

	u, err := svc.RegisterUser(context.Background(), model.Registration{
		Username:   name,
		FirstName:  name,
		LastName:   "Test",
		NationalID: fmt.Sprintf("%08d", 10000000+dniSeq.Add(1)),
		Email:      name + "@example.com",
		Password:   "password123",
	})
	require.NoError(t, err)

	if b := dec(balance); b.IsPositive() {
		_, err = svc.Credit(context.Background(), u.ID, b)
		require.NoError(t, err)
	}
	return u.ID
}

func freeEventInput(title string) model.EventInput {
	return model.EventInput{
		Title:            title,
		Date:             testNow.Add(72 * time.Hour),
		ShortDescription: "short",
		FullDescription:  "full",
		Location:         "Plaza",
		Category:         model.CategoryNeighborhoodMeet,
	}
}

func paidEventInput(title, price string) model.EventInput {
	in := freeEventInput(title)
	in.Category = model.CategoryRecital
	in.IsPaid = true
	in.Price = decimal.NewNullDecimal(dec(price))
	return in
}

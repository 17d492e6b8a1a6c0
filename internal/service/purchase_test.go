package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/ticketing-system/internal/model"
	"github.com/mmeshcher/ticketing-system/internal/repository"
)

func TestPurchaseTickets_DebitsAndCreatesAttendance(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	ctx := context.Background()
	creator := seedUser(t, svc, "org", "0")
	buyer := seedUser(t, svc, "buyer", "1000")

	event, err := svc.CreateEvent(ctx, creator, paidEventInput("Concert", "120.50"))
	require.NoError(t, err)

	p, err := svc.PurchaseTickets(ctx, buyer, event.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Quantity)
	assert.Equal(t, "361.50", p.TotalAmount.StringFixed(2))
	assert.Equal(t, event.ID, p.Event.ID)

	assert.Equal(t, "638.50", repo.balance(t, buyer).StringFixed(2))
	assert.True(t, repo.attending(buyer, event.ID))

	// повторная покупка не дублирует участие
	_, err = svc.PurchaseTickets(ctx, buyer, event.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "518.00", repo.balance(t, buyer).StringFixed(2))

	details, err := svc.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, details.AttendanceCount)
	assert.Equal(t, 2, details.PurchaseCount)

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, model.NotificationPurchaseCreated, notifier.sent[0].Type)
	assert.Equal(t, "361.50", notifier.sent[0].Amount.StringFixed(2))
	assert.NotEmpty(t, notifier.sent[0].ID)
}

func TestPurchaseTickets_InsufficientFundsMutatesNothing(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	ctx := context.Background()
	creator := seedUser(t, svc, "org", "0")
	buyer := seedUser(t, svc, "buyer", "500")

	event, err := svc.CreateEvent(ctx, creator, paidEventInput("Concert", "1000"))
	require.NoError(t, err)

	_, err = svc.PurchaseTickets(ctx, buyer, event.ID, 1)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, KindInsufficientFunds, KindOf(err))

	assert.True(t, repo.balance(t, buyer).Equal(dec("500")))
	assert.False(t, repo.attending(buyer, event.ID))
	assert.Zero(t, repo.purchaseCount())
	assert.Empty(t, notifier.sent)
}

func TestPurchaseTickets_Preconditions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	creator := seedUser(t, svc, "org", "0")
	buyer := seedUser(t, svc, "buyer", "1000")

	free, err := svc.CreateEvent(ctx, creator, freeEventInput("Picnic"))
	require.NoError(t, err)
	paid, err := svc.CreateEvent(ctx, creator, paidEventInput("Concert", "10"))
	require.NoError(t, err)
	cancelled, err := svc.CreateEvent(ctx, creator, paidEventInput("Opera", "10"))
	require.NoError(t, err)
	_, err = svc.CancelEvent(ctx, cancelled.ID, creator)
	require.NoError(t, err)

	tests := []struct {
		name     string
		userID   int64
		eventID  int64
		quantity int
		want     error
	}{
		{name: "zero quantity", userID: buyer, eventID: paid.ID, quantity: 0, want: ErrInvalidQuantity},
		{name: "negative quantity", userID: buyer, eventID: paid.ID, quantity: -2, want: ErrInvalidQuantity},
		{name: "missing event", userID: buyer, eventID: 999, quantity: 1, want: ErrEventNotFound},
		{name: "free event", userID: buyer, eventID: free.ID, quantity: 1, want: ErrEventNotPaid},
		{name: "cancelled event", userID: buyer, eventID: cancelled.ID, quantity: 1, want: ErrEventCancelled},
		{name: "missing user", userID: 999, eventID: paid.ID, quantity: 1, want: ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PurchaseTickets(ctx, tt.userID, tt.eventID, tt.quantity)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPurchaseTickets_RollsBackOnFailure(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	creator := seedUser(t, svc, "org", "0")
	buyer := seedUser(t, svc, "buyer", "100")

	event, err := svc.CreateEvent(ctx, creator, paidEventInput("Concert", "40"))
	require.NoError(t, err)

	repo.failPurchaseWith = errors.New("connection reset")

	_, err = svc.PurchaseTickets(ctx, buyer, event.ID, 2)
	require.Error(t, err)
	assert.Zero(t, KindOf(err))
	assert.Contains(t, err.Error(), "purchase tickets")

	assert.True(t, repo.balance(t, buyer).Equal(dec("100")))
	assert.False(t, repo.attending(buyer, event.ID))
}

func TestPurchaseTickets_TransactionFailed(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	creator := seedUser(t, svc, "org", "0")
	buyer := seedUser(t, svc, "buyer", "100")

	event, err := svc.CreateEvent(ctx, creator, paidEventInput("Concert", "40"))
	require.NoError(t, err)

	repo.txErr = fmt.Errorf("%w: deadlock detected", repository.ErrTxAborted)

	_, err = svc.PurchaseTickets(ctx, buyer, event.ID, 1)
	require.ErrorIs(t, err, ErrTransactionFailed)
	assert.Equal(t, KindTransactionFailed, KindOf(err))
}

func TestPurchaseTickets_ConcurrentBuyersNeverOverdraw(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	creator := seedUser(t, svc, "org", "0")
	buyer := seedUser(t, svc, "buyer", "1000")

	event, err := svc.CreateEvent(ctx, creator, paidEventInput("Concert", "300"))
	require.NoError(t, err)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PurchaseTickets(ctx, buyer, event.ID, 1)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientFunds):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, attempts-3, rejected)
	assert.True(t, repo.balance(t, buyer).Equal(dec("100")))
	assert.Equal(t, 3, repo.purchaseCount())
}

func TestGetUserPurchases(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	creator := seedUser(t, svc, "org", "0")
	buyer := seedUser(t, svc, "buyer", "1000")

	purchases, err := svc.GetUserPurchases(ctx, buyer)
	require.NoError(t, err)
	assert.NotNil(t, purchases)
	assert.Empty(t, purchases)

	first, err := svc.CreateEvent(ctx, creator, paidEventInput("Concert", "10"))
	require.NoError(t, err)
	second, err := svc.CreateEvent(ctx, creator, paidEventInput("Opera", "20"))
	require.NoError(t, err)

	_, err = svc.PurchaseTickets(ctx, buyer, first.ID, 1)
	require.NoError(t, err)
	_, err = svc.PurchaseTickets(ctx, buyer, second.ID, 2)
	require.NoError(t, err)

	purchases, err = svc.GetUserPurchases(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, purchases, 2)
	assert.Equal(t, second.ID, purchases[0].EventID)
	assert.Equal(t, "org", purchases[0].Creator.Username)
	assert.Equal(t, first.ID, purchases[1].EventID)
}

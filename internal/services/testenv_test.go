package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/stretchr/testify/require"

	"eventix/models"
	"eventix/store"
)

type testEnv struct {
	db *dbx.DB

	ledger    *LedgerService
	payments  *PaymentService
	txns      *TransactionService
	referrals *ReferralService
	sweeper   *SweeperService

	users    store.UserStore
	events   store.EventStore
	coupons  store.CouponStore
	promos   store.PromotionStore
	points   store.PointStore
	txnStore store.TransactionStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "eventix.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	notifier := NewNotifier(nil, nil)
	ledger := NewLedgerService(db, nil, 30*time.Second, 3)
	payments := NewPaymentService(nil)
	txns := NewTransactionService(db, ledger, payments, notifier, 2*time.Hour)
	referrals := NewReferralService(db, ledger, notifier, 10000, 10000, 3)
	sweeper := NewSweeperService(db, txns, ledger, 5*time.Minute, time.Hour, 24*time.Hour, 72*time.Hour)

	return &testEnv{
		db:        db,
		ledger:    ledger,
		payments:  payments,
		txns:      txns,
		referrals: referrals,
		sweeper:   sweeper,
	}
}

var userSeq int

func (e *testEnv) createUser(t *testing.T) *models.User {
	t.Helper()
	userSeq++
	u := &models.User{
		ID:           uuid.NewString(),
		Name:         fmt.Sprintf("User %d", userSeq),
		Email:        fmt.Sprintf("user%d-%s@example.com", userSeq, uuid.NewString()[:8]),
		PasswordHash: "x",
		Role:         "customer",
		ReferralCode: fmt.Sprintf("REF%d%s", userSeq, uuid.NewString()[:6]),
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, e.users.Create(context.Background(), e.db, u))
	return u
}

func (e *testEnv) createUserWithPoints(t *testing.T, amount int64) *models.User {
	t.Helper()
	u := e.createUser(t)
	require.NoError(t, e.ledger.GrantWithDefaultExpiry(context.Background(), e.db, u.ID, amount))
	return u
}

func (e *testEnv) createEvent(t *testing.T, price int64, seats int) *models.Event {
	t.Helper()
	organizer := e.createUser(t)
	return e.createEventFor(t, organizer.ID, price, seats)
}

func (e *testEnv) createEventFor(t *testing.T, organizerID string, price int64, seats int) *models.Event {
	t.Helper()
	ev := &models.Event{
		ID:             uuid.NewString(),
		OrganizerID:    organizerID,
		Title:          "Test Concert",
		Price:          price,
		AvailableSeats: seats,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, e.events.Create(context.Background(), e.db, ev))
	return ev
}

func (e *testEnv) createTicketType(t *testing.T, eventID string, price int64, quantity int) *models.TicketType {
	t.Helper()
	tt := &models.TicketType{
		ID:       uuid.NewString(),
		EventID:  eventID,
		Name:     "VIP",
		Price:    price,
		Quantity: quantity,
	}
	require.NoError(t, e.events.CreateTicketType(context.Background(), e.db, tt))
	return tt
}

func (e *testEnv) createPromotion(t *testing.T, eventID, code string, discount int64, start, end time.Time, maxUses *int) *models.Promotion {
	t.Helper()
	p := &models.Promotion{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Code:      code,
		Discount:  discount,
		StartDate: start,
		EndDate:   end,
		MaxUses:   maxUses,
	}
	require.NoError(t, e.promos.Create(context.Background(), e.db, p))
	return p
}

func (e *testEnv) seats(t *testing.T, eventID string) int {
	t.Helper()
	ev, err := e.events.Get(context.Background(), e.db, eventID)
	require.NoError(t, err)
	return ev.AvailableSeats
}

func (e *testEnv) balance(t *testing.T, userID string) int64 {
	t.Helper()
	bal, err := e.ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return bal
}

// backdate shifts a transaction's timestamps so sweeper passes see it as
// overdue.
func (e *testEnv) backdate(t *testing.T, txnID string, expiresAt, updatedAt time.Time) {
	t.Helper()
	_, err := e.db.NewQuery(
		`UPDATE transactions SET expires_at = {:exp}, updated_at = {:upd} WHERE id = {:id}`).
		Bind(dbx.Params{"id": txnID, "exp": expiresAt, "upd": updatedAt}).
		Execute()
	require.NoError(t, err)
}

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventix/internal/status"
	"eventix/models"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func (e *testEnv) createCoupon(t *testing.T, userID, code string, discount int64, expiresAt time.Time) *models.Coupon {
	t.Helper()
	c := &models.Coupon{
		ID:        uuid.NewString(),
		UserID:    userID,
		Code:      code,
		Discount:  discount,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, e.coupons.Create(context.Background(), e.db, c))
	return c
}

func TestCreateTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("plain purchase", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		event := env.createEvent(t, 50000, 100)

		txn, err := env.txns.Create(ctx, CreateTransactionRequest{
			UserID:   user.ID,
			EventID:  event.ID,
			Quantity: 2,
		})
		require.NoError(t, err)

		assert.Equal(t, int64(100000), txn.TotalPrice)
		assert.Equal(t, models.StatusWaitingForPayment, txn.Status)
		require.NotNil(t, txn.ExpiresAt)
		assert.True(t, txn.ExpiresAt.After(time.Now().UTC()))
		assert.Equal(t, 98, env.seats(t, event.ID))
	})

	t.Run("promotion voucher discounts and counts a use", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		event := env.createEvent(t, 50000, 100)
		now := time.Now().UTC()
		env.createPromotion(t, event.ID, "LAUNCH20", 20000, now.Add(-time.Hour), now.Add(time.Hour), intPtr(5))

		txn, err := env.txns.Create(ctx, CreateTransactionRequest{
			UserID:      user.ID,
			EventID:     event.ID,
			Quantity:    2,
			VoucherCode: strPtr("LAUNCH20"),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(80000), txn.TotalPrice)

		promo, err := env.promos.GetByCode(ctx, env.db, "LAUNCH20")
		require.NoError(t, err)
		assert.Equal(t, 1, promo.Uses)
	})

	t.Run("coupon voucher is single use", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		event := env.createEvent(t, 50000, 100)
		coupon := env.createCoupon(t, user.ID, "WELCOME", 10000, time.Now().UTC().Add(24*time.Hour))

		txn, err := env.txns.Create(ctx, CreateTransactionRequest{
			UserID:      user.ID,
			EventID:     event.ID,
			Quantity:    1,
			VoucherCode: strPtr("WELCOME"),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(40000), txn.TotalPrice)

		_, err = env.txns.Create(ctx, CreateTransactionRequest{
			UserID:      user.ID,
			EventID:     event.ID,
			Quantity:    1,
			VoucherCode: strPtr(coupon.Code),
		})
		assert.ErrorIs(t, err, status.ErrInvalidVoucher)
	})

	t.Run("points payment drains ledger", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUserWithPoints(t, 30000)
		event := env.createEvent(t, 50000, 100)

		txn, err := env.txns.Create(ctx, CreateTransactionRequest{
			UserID:     user.ID,
			EventID:    event.ID,
			Quantity:   1,
			PointsUsed: 30000,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(20000), txn.TotalPrice)
		assert.Equal(t, int64(30000), txn.PointsUsed)
		assert.Equal(t, int64(0), env.balance(t, user.ID))
	})

	t.Run("points charge capped at post-voucher remainder", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUserWithPoints(t, 25000)
		event := env.createEvent(t, 50000, 100)
		now := time.Now().UTC()
		env.createPromotion(t, event.ID, "BIG40", 40000, now.Add(-time.Hour), now.Add(time.Hour), nil)

		txn, err := env.txns.Create(ctx, CreateTransactionRequest{
			UserID:      user.ID,
			EventID:     event.ID,
			Quantity:    1,
			VoucherCode: strPtr("BIG40"),
			PointsUsed:  25000,
		})
		require.NoError(t, err)

		// Only 10000 remained after the voucher; the rest stays banked.
		assert.Equal(t, int64(0), txn.TotalPrice)
		assert.Equal(t, int64(10000), txn.PointsUsed)
		assert.Equal(t, models.StatusDone, txn.Status)
		assert.Nil(t, txn.ExpiresAt)
		assert.Equal(t, int64(15000), env.balance(t, user.ID))
	})

	t.Run("zero total completes immediately", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUserWithPoints(t, 50000)
		event := env.createEvent(t, 50000, 100)

		txn, err := env.txns.Create(ctx, CreateTransactionRequest{
			UserID:     user.ID,
			EventID:    event.ID,
			Quantity:   1,
			PointsUsed: 50000,
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusDone, txn.Status)
		assert.Nil(t, txn.ExpiresAt)
	})

	t.Run("ticket type overrides unit price and pool", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		event := env.createEvent(t, 50000, 100)
		tt := env.createTicketType(t, event.ID, 120000, 10)

		txn, err := env.txns.Create(ctx, CreateTransactionRequest{
			UserID:       user.ID,
			EventID:      event.ID,
			Quantity:     2,
			TicketTypeID: &tt.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(240000), txn.TotalPrice)

		got, err := env.events.GetTicketType(ctx, env.db, tt.ID, event.ID)
		require.NoError(t, err)
		assert.Equal(t, 8, got.Quantity)
		// The event-level pool is untouched.
		assert.Equal(t, 100, env.seats(t, event.ID))
	})

	t.Run("ticket type from another event is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		event := env.createEvent(t, 50000, 100)
		other := env.createEvent(t, 50000, 100)
		tt := env.createTicketType(t, other.ID, 120000, 10)

		_, err := env.txns.Create(ctx, CreateTransactionRequest{
			UserID:       user.ID,
			EventID:      event.ID,
			Quantity:     1,
			TicketTypeID: &tt.ID,
		})
		assert.ErrorIs(t, err, status.ErrInvalidTicketType)
	})

	t.Run("insufficient inventory leaves nothing behind", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUserWithPoints(t, 10000)
		event := env.createEvent(t, 50000, 3)

		_, err := env.txns.Create(ctx, CreateTransactionRequest{
			UserID:     user.ID,
			EventID:    event.ID,
			Quantity:   5,
			PointsUsed: 10000,
		})
		assert.ErrorIs(t, err, status.ErrInsufficientInventory)
		assert.Equal(t, 3, env.seats(t, event.ID))
		assert.Equal(t, int64(10000), env.balance(t, user.ID))
	})

	t.Run("requested points beyond balance", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUserWithPoints(t, 5000)
		event := env.createEvent(t, 50000, 100)

		_, err := env.txns.Create(ctx, CreateTransactionRequest{
			UserID:     user.ID,
			EventID:    event.ID,
			Quantity:   1,
			PointsUsed: 6000,
		})
		assert.ErrorIs(t, err, status.ErrInsufficientPoints)
		assert.Equal(t, 100, env.seats(t, event.ID))
	})

	t.Run("expired promotion is an invalid voucher", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		event := env.createEvent(t, 50000, 100)
		now := time.Now().UTC()
		env.createPromotion(t, event.ID, "OLD", 20000, now.Add(-48*time.Hour), now.Add(-24*time.Hour), nil)

		_, err := env.txns.Create(ctx, CreateTransactionRequest{
			UserID:      user.ID,
			EventID:     event.ID,
			Quantity:    1,
			VoucherCode: strPtr("OLD"),
		})
		assert.ErrorIs(t, err, status.ErrInvalidVoucher)
		assert.Equal(t, 100, env.seats(t, event.ID))
	})

	t.Run("unknown voucher code", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		event := env.createEvent(t, 50000, 100)

		_, err := env.txns.Create(ctx, CreateTransactionRequest{
			UserID:      user.ID,
			EventID:     event.ID,
			Quantity:    1,
			VoucherCode: strPtr("NOPE"),
		})
		assert.ErrorIs(t, err, status.ErrInvalidVoucher)
	})

	t.Run("unknown event", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)

		_, err := env.txns.Create(ctx, CreateTransactionRequest{
			UserID:   user.ID,
			EventID:  uuid.NewString(),
			Quantity: 1,
		})
		assert.ErrorIs(t, err, status.ErrNotFound)
	})

	t.Run("concurrent purchases never oversell", func(t *testing.T) {
		env := newTestEnv(t)
		event := env.createEvent(t, 50000, 10)

		users := make([]*models.User, 8)
		for i := range users {
			users[i] = env.createUser(t)
		}

		var wg sync.WaitGroup
		results := make(chan error, len(users))
		for _, u := range users {
			wg.Add(1)
			go func(userID string) {
				defer wg.Done()
				_, err := env.txns.Create(ctx, CreateTransactionRequest{
					UserID:   userID,
					EventID:  event.ID,
					Quantity: 3,
				})
				results <- err
			}(u.ID)
		}
		wg.Wait()
		close(results)

		succeeded := 0
		for err := range results {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, status.ErrInsufficientInventory)
			}
		}

		// 10 seats, 3 per purchase: exactly three fit.
		assert.Equal(t, 3, succeeded)
		assert.Equal(t, 1, env.seats(t, event.ID))
	})
}

func TestPaymentProofFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("proof moves the transaction to admin review", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		event := env.createEvent(t, 50000, 100)

		txn, err := env.txns.Create(ctx, CreateTransactionRequest{UserID: user.ID, EventID: event.ID, Quantity: 1})
		require.NoError(t, err)

		txn, err = env.txns.UploadPaymentProof(ctx, txn.ID, "uploads/proof-1.jpg")
		require.NoError(t, err)
		assert.Equal(t, models.StatusWaitingForAdmin, txn.Status)
		require.NotNil(t, txn.PaymentProof)
		assert.Equal(t, "uploads/proof-1.jpg", *txn.PaymentProof)
	})

	t.Run("empty proof is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		event := env.createEvent(t, 50000, 100)

		txn, err := env.txns.Create(ctx, CreateTransactionRequest{UserID: user.ID, EventID: event.ID, Quantity: 1})
		require.NoError(t, err)

		_, err = env.txns.UploadPaymentProof(ctx, txn.ID, "")
		assert.ErrorIs(t, err, status.ErrMissingProof)
	})

	t.Run("proof is only legal while waiting for payment", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		event := env.createEvent(t, 50000, 100)

		txn, err := env.txns.Create(ctx, CreateTransactionRequest{UserID: user.ID, EventID: event.ID, Quantity: 1})
		require.NoError(t, err)
		_, err = env.txns.UploadPaymentProof(ctx, txn.ID, "uploads/a.jpg")
		require.NoError(t, err)

		_, err = env.txns.UploadPaymentProof(ctx, txn.ID, "uploads/b.jpg")
		assert.ErrorIs(t, err, status.ErrInvalidStateTransition)
	})
}

func TestConfirmAndReject(t *testing.T) {
	ctx := context.Background()

	// submitForReview creates a purchase and uploads proof so it sits in
	// WAITING_FOR_ADMIN_CONFIRMATION.
	submitForReview := func(t *testing.T, env *testEnv, req CreateTransactionRequest) *models.Transaction {
		t.Helper()
		txn, err := env.txns.Create(ctx, req)
		require.NoError(t, err)
		txn, err = env.txns.UploadPaymentProof(ctx, txn.ID, "uploads/proof.jpg")
		require.NoError(t, err)
		return txn
	}

	t.Run("organizer confirms", func(t *testing.T) {
		env := newTestEnv(t)
		organizer := env.createUser(t)
		user := env.createUser(t)
		event := env.createEventFor(t, organizer.ID, 50000, 100)

		txn := submitForReview(t, env, CreateTransactionRequest{UserID: user.ID, EventID: event.ID, Quantity: 2})

		txn, err := env.txns.Confirm(ctx, txn.ID, organizer.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDone, txn.Status)
		// Confirmation keeps the seats sold.
		assert.Equal(t, 98, env.seats(t, event.ID))
	})

	t.Run("only the organizer may confirm", func(t *testing.T) {
		env := newTestEnv(t)
		organizer := env.createUser(t)
		stranger := env.createUser(t)
		user := env.createUser(t)
		event := env.createEventFor(t, organizer.ID, 50000, 100)

		txn := submitForReview(t, env, CreateTransactionRequest{UserID: user.ID, EventID: event.ID, Quantity: 1})

		_, err := env.txns.Confirm(ctx, txn.ID, stranger.ID)
		assert.ErrorIs(t, err, status.ErrForbidden)

		got, err := env.txns.Get(ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusWaitingForAdmin, got.Status)
	})

	t.Run("reject rolls every reservation back", func(t *testing.T) {
		env := newTestEnv(t)
		organizer := env.createUser(t)
		user := env.createUserWithPoints(t, 30000)
		event := env.createEventFor(t, organizer.ID, 50000, 100)
		now := time.Now().UTC()
		env.createPromotion(t, event.ID, "PROMO", 10000, now.Add(-time.Hour), now.Add(time.Hour), intPtr(10))

		txn := submitForReview(t, env, CreateTransactionRequest{
			UserID:      user.ID,
			EventID:     event.ID,
			Quantity:    2,
			VoucherCode: strPtr("PROMO"),
			PointsUsed:  30000,
		})
		assert.Equal(t, 98, env.seats(t, event.ID))
		assert.Equal(t, int64(0), env.balance(t, user.ID))

		txn, err := env.txns.Reject(ctx, txn.ID, organizer.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRejected, txn.Status)

		assert.Equal(t, 100, env.seats(t, event.ID))
		assert.Equal(t, int64(30000), env.balance(t, user.ID))
		promo, err := env.promos.GetByCode(ctx, env.db, "PROMO")
		require.NoError(t, err)
		assert.Equal(t, 0, promo.Uses)
	})

	t.Run("reject restores a redeemed coupon", func(t *testing.T) {
		env := newTestEnv(t)
		organizer := env.createUser(t)
		user := env.createUser(t)
		event := env.createEventFor(t, organizer.ID, 50000, 100)
		coupon := env.createCoupon(t, user.ID, "MINE", 10000, time.Now().UTC().Add(24*time.Hour))

		txn := submitForReview(t, env, CreateTransactionRequest{
			UserID:      user.ID,
			EventID:     event.ID,
			Quantity:    1,
			VoucherCode: strPtr("MINE"),
		})

		_, err := env.txns.Reject(ctx, txn.ID, organizer.ID)
		require.NoError(t, err)

		got, err := env.coupons.GetByCode(ctx, env.db, user.ID, coupon.Code)
		require.NoError(t, err)
		assert.False(t, got.IsUsed)
	})

	t.Run("second reject is a no-op with no double refund", func(t *testing.T) {
		env := newTestEnv(t)
		organizer := env.createUser(t)
		user := env.createUserWithPoints(t, 20000)
		event := env.createEventFor(t, organizer.ID, 50000, 100)

		txn := submitForReview(t, env, CreateTransactionRequest{
			UserID:     user.ID,
			EventID:    event.ID,
			Quantity:   2,
			PointsUsed: 20000,
		})

		_, err := env.txns.Reject(ctx, txn.ID, organizer.ID)
		require.NoError(t, err)

		_, err = env.txns.Reject(ctx, txn.ID, organizer.ID)
		assert.ErrorIs(t, err, status.ErrInvalidStateTransition)

		assert.Equal(t, 100, env.seats(t, event.ID))
		assert.Equal(t, int64(20000), env.balance(t, user.ID))
	})
}

func TestExpireAndAutoCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("expire compensates an unpaid purchase", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUserWithPoints(t, 10000)
		event := env.createEvent(t, 50000, 100)

		txn, err := env.txns.Create(ctx, CreateTransactionRequest{
			UserID:     user.ID,
			EventID:    event.ID,
			Quantity:   3,
			PointsUsed: 10000,
		})
		require.NoError(t, err)

		txn, err = env.txns.Expire(ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusExpired, txn.Status)
		assert.Equal(t, 100, env.seats(t, event.ID))
		assert.Equal(t, int64(10000), env.balance(t, user.ID))
	})

	t.Run("expire only applies to unpaid transactions", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		event := env.createEvent(t, 50000, 100)

		txn, err := env.txns.Create(ctx, CreateTransactionRequest{UserID: user.ID, EventID: event.ID, Quantity: 1})
		require.NoError(t, err)
		_, err = env.txns.UploadPaymentProof(ctx, txn.ID, "uploads/p.jpg")
		require.NoError(t, err)

		_, err = env.txns.Expire(ctx, txn.ID)
		assert.ErrorIs(t, err, status.ErrInvalidStateTransition)
		assert.Equal(t, 99, env.seats(t, event.ID))
	})

	t.Run("auto cancel compensates a stalled review", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		event := env.createEvent(t, 50000, 100)

		txn, err := env.txns.Create(ctx, CreateTransactionRequest{UserID: user.ID, EventID: event.ID, Quantity: 2})
		require.NoError(t, err)
		_, err = env.txns.UploadPaymentProof(ctx, txn.ID, "uploads/p.jpg")
		require.NoError(t, err)

		txn, err = env.txns.AutoCancel(ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCanceled, txn.Status)
		assert.Equal(t, 100, env.seats(t, event.ID))
	})

	t.Run("ticket type units are released on expiry", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)
		event := env.createEvent(t, 50000, 100)
		tt := env.createTicketType(t, event.ID, 80000, 5)

		txn, err := env.txns.Create(ctx, CreateTransactionRequest{
			UserID:       user.ID,
			EventID:      event.ID,
			Quantity:     2,
			TicketTypeID: &tt.ID,
		})
		require.NoError(t, err)

		_, err = env.txns.Expire(ctx, txn.ID)
		require.NoError(t, err)

		got, err := env.events.GetTicketType(ctx, env.db, tt.ID, event.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.Quantity)
	})
}

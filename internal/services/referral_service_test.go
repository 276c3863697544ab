package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventix/internal/status"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("without referral", func(t *testing.T) {
		env := newTestEnv(t)

		user, coupon, err := env.referrals.Register(ctx, RegisterRequest{
			Name:     "Ana",
			Email:    "ana@example.com",
			Password: "s3cret",
		})
		require.NoError(t, err)
		assert.Nil(t, coupon)
		assert.NotEmpty(t, user.ReferralCode)
		assert.Nil(t, user.ReferredBy)
		assert.Equal(t, "customer", user.Role)
		assert.NotEqual(t, "s3cret", user.PasswordHash)
	})

	t.Run("with referral grants both sides", func(t *testing.T) {
		env := newTestEnv(t)
		referrer := env.createUser(t)

		user, coupon, err := env.referrals.Register(ctx, RegisterRequest{
			Name:         "Ben",
			Email:        "ben@example.com",
			Password:     "s3cret",
			ReferralCode: &referrer.ReferralCode,
		})
		require.NoError(t, err)

		require.NotNil(t, user.ReferredBy)
		assert.Equal(t, referrer.ID, *user.ReferredBy)
		assert.Equal(t, int64(10000), env.balance(t, referrer.ID))

		require.NotNil(t, coupon)
		assert.Equal(t, user.ID, coupon.UserID)
		assert.Equal(t, int64(10000), coupon.Discount)
		assert.False(t, coupon.IsUsed)
	})

	t.Run("unknown referral code aborts the registration", func(t *testing.T) {
		env := newTestEnv(t)
		code := "NOSUCH"

		_, _, err := env.referrals.Register(ctx, RegisterRequest{
			Name:         "Cara",
			Email:        "cara@example.com",
			Password:     "s3cret",
			ReferralCode: &code,
		})
		assert.ErrorIs(t, err, status.ErrInvalidReferralCode)
	})

	t.Run("duplicate email", func(t *testing.T) {
		env := newTestEnv(t)

		_, _, err := env.referrals.Register(ctx, RegisterRequest{
			Name:     "Eve",
			Email:    "eve@example.com",
			Password: "s3cret",
		})
		require.NoError(t, err)

		_, _, err = env.referrals.Register(ctx, RegisterRequest{
			Name:     "Evil Eve",
			Email:    "eve@example.com",
			Password: "0therpw",
		})
		assert.ErrorIs(t, err, status.ErrEmailTaken)
	})

	t.Run("missing fields", func(t *testing.T) {
		env := newTestEnv(t)
		_, _, err := env.referrals.Register(ctx, RegisterRequest{Name: "Dan"})
		assert.Error(t, err)
	})
}

func TestApplyReferral(t *testing.T) {
	ctx := context.Background()

	t.Run("links and rewards once", func(t *testing.T) {
		env := newTestEnv(t)
		referrer := env.createUser(t)
		user := env.createUser(t)

		coupon, err := env.referrals.ApplyReferral(ctx, user.ID, referrer.ReferralCode)
		require.NoError(t, err)
		require.NotNil(t, coupon)
		assert.Equal(t, int64(10000), env.balance(t, referrer.ID))

		_, err = env.referrals.ApplyReferral(ctx, user.ID, referrer.ReferralCode)
		assert.ErrorIs(t, err, status.ErrAlreadyReferred)
		// No second grant for the replay.
		assert.Equal(t, int64(10000), env.balance(t, referrer.ID))
	})

	t.Run("self referral", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t)

		_, err := env.referrals.ApplyReferral(ctx, user.ID, user.ReferralCode)
		assert.ErrorIs(t, err, status.ErrSelfReferral)
	})

	t.Run("switching referrers is not allowed", func(t *testing.T) {
		env := newTestEnv(t)
		first := env.createUser(t)
		second := env.createUser(t)
		user := env.createUser(t)

		_, err := env.referrals.ApplyReferral(ctx, user.ID, first.ReferralCode)
		require.NoError(t, err)

		_, err = env.referrals.ApplyReferral(ctx, user.ID, second.ReferralCode)
		assert.ErrorIs(t, err, status.ErrAlreadyReferred)
		assert.Equal(t, int64(0), env.balance(t, second.ID))
	})

	t.Run("referral coupon is spendable", func(t *testing.T) {
		env := newTestEnv(t)
		referrer := env.createUser(t)
		user := env.createUser(t)
		event := env.createEvent(t, 50000, 100)

		coupon, err := env.referrals.ApplyReferral(ctx, user.ID, referrer.ReferralCode)
		require.NoError(t, err)

		txn, err := env.txns.Create(ctx, CreateTransactionRequest{
			UserID:      user.ID,
			EventID:     event.ID,
			Quantity:    1,
			VoucherCode: &coupon.Code,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(40000), txn.TotalPrice)
	})
}

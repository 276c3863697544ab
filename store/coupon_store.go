package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"

	"eventix/internal/status"
	"eventix/models"
)

type CouponStore struct{}

func (CouponStore) Create(ctx context.Context, db dbx.Builder, c *models.Coupon) error {
	_, err := db.Insert("coupons", dbx.Params{
		"id":         c.ID,
		"user_id":    c.UserID,
		"code":       c.Code,
		"discount":   c.Discount,
		"expires_at": c.ExpiresAt,
		"is_used":    c.IsUsed,
		"created_at": c.CreatedAt,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

// GetByCode looks a coupon up for its owner. Coupons are user-scoped, so a
// code belonging to somebody else behaves like a missing one.
func (CouponStore) GetByCode(ctx context.Context, db dbx.Builder, userID, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := db.Select("*").From("coupons").
		Where(dbx.HashExp{"user_id": userID, "code": code}).
		WithContext(ctx).
		One(&c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrInvalidVoucher
	}
	if err != nil {
		return nil, fmt.Errorf("get coupon by code: %w", err)
	}
	return &c, nil
}

// Redeem flips is_used. The guard keeps a coupon single-use even when two
// purchases race on the same code.
func (CouponStore) Redeem(ctx context.Context, db dbx.Builder, id string, now time.Time) error {
	res, err := db.NewQuery(
		`UPDATE coupons SET is_used = 1
		 WHERE id = {:id} AND is_used = 0 AND expires_at > {:now}`).
		Bind(dbx.Params{"id": id, "now": now}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("redeem coupon: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return status.ErrInvalidVoucher
	}
	return nil
}

// Restore makes a redeemed coupon available again during compensation.
func (CouponStore) Restore(ctx context.Context, db dbx.Builder, id string) error {
	_, err := db.Update("coupons", dbx.Params{"is_used": false}, dbx.HashExp{"id": id}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("restore coupon: %w", err)
	}
	return nil
}

// DeleteExpired removes coupons past their expiry, used or not.
func (CouponStore) DeleteExpired(ctx context.Context, db dbx.Builder, now time.Time) (int64, error) {
	res, err := db.NewQuery(`DELETE FROM coupons WHERE expires_at <= {:now}`).
		Bind(dbx.Params{"now": now}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("delete expired coupons: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

package models

import (
	"time"
)

// Point is a single loyalty grant. A user's balance is the sum of their
// non-expired rows; the denormalized users.user_points column tracks that sum.
type Point struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Amount    int64     `db:"amount" json:"amount"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Coupon is a user-scoped, single-use discount. All-or-nothing: it is never
// partially consumed.
type Coupon struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Code      string    `db:"code" json:"code"`
	Discount  int64     `db:"discount" json:"discount"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	IsUsed    bool      `db:"is_used" json:"is_used"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

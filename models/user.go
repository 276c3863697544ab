package models

import (
	"time"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"` // customer, organizer
	ReferralCode string    `db:"referral_code" json:"referral_code"`
	ReferredBy   *string   `db:"referred_by" json:"referred_by,omitempty"`
	UserPoints   int64     `db:"user_points" json:"user_points"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/pocketbase/dbx"

	"eventix/internal/status"
	"eventix/models"
)

type UserStore struct{}

func (UserStore) Create(ctx context.Context, db dbx.Builder, u *models.User) error {
	_, err := db.Insert("users", dbx.Params{
		"id":            u.ID,
		"name":          u.Name,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"role":          u.Role,
		"referral_code": u.ReferralCode,
		"referred_by":   u.ReferredBy,
		"user_points":   u.UserPoints,
		"created_at":    u.CreatedAt,
	}).WithContext(ctx).Execute()
	if isUniqueViolation(err, "users.email") {
		return status.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on
// the named column.
func isUniqueViolation(err error, column string) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
		strings.Contains(sqliteErr.Error(), column)
}

func (UserStore) Get(ctx context.Context, db dbx.Builder, id string) (*models.User, error) {
	var u models.User
	err := db.Select("*").From("users").
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&u)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

func (UserStore) GetByReferralCode(ctx context.Context, db dbx.Builder, code string) (*models.User, error) {
	var u models.User
	err := db.Select("*").From("users").
		Where(dbx.HashExp{"referral_code": code}).
		WithContext(ctx).
		One(&u)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by referral code: %w", err)
	}
	return &u, nil
}

// AddPoints moves the denormalized balance counter. Negative deltas are
// guarded so the counter mirrors the ledger invariant (never below zero).
// Must only be called from ledger operations, inside their transaction.
func (UserStore) AddPoints(ctx context.Context, db dbx.Builder, userID string, delta int64) error {
	res, err := db.NewQuery(
		`UPDATE users SET user_points = user_points + {:delta}
		 WHERE id = {:id} AND user_points + {:delta} >= 0`).
		Bind(dbx.Params{"id": userID, "delta": delta}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("adjust user points: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return status.ErrInsufficientPoints
	}
	return nil
}

// SetReferredBy links the user to their referrer. Guarded on referred_by
// still being NULL, which enforces referral exclusivity under concurrency.
func (UserStore) SetReferredBy(ctx context.Context, db dbx.Builder, userID, referrerID string) error {
	res, err := db.NewQuery(
		`UPDATE users SET referred_by = {:ref} WHERE id = {:id} AND referred_by IS NULL`).
		Bind(dbx.Params{"id": userID, "ref": referrerID}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("set referred_by: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return status.ErrAlreadyReferred
	}
	return nil
}

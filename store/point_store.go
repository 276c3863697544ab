package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"

	"eventix/models"
)

// PointStore persists the append-side of the reward ledger: one row per
// grant, decremented toward zero as the balance is consumed.
type PointStore struct{}

func (PointStore) Insert(ctx context.Context, db dbx.Builder, p *models.Point) error {
	_, err := db.Insert("points", dbx.Params{
		"id":         p.ID,
		"user_id":    p.UserID,
		"amount":     p.Amount,
		"expires_at": p.ExpiresAt,
		"created_at": p.CreatedAt,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("insert point grant: %w", err)
	}
	return nil
}

// ListActive returns the user's consumable grants ordered soonest-expiring
// first, which is the FIFO order consumption walks.
func (PointStore) ListActive(ctx context.Context, db dbx.Builder, userID string, now time.Time) ([]models.Point, error) {
	var rows []models.Point
	err := db.Select("*").From("points").
		Where(dbx.NewExp("user_id = {:uid} AND amount > 0 AND expires_at > {:now}",
			dbx.Params{"uid": userID, "now": now})).
		OrderBy("expires_at ASC", "created_at ASC").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("list active points: %w", err)
	}
	return rows, nil
}

func (PointStore) SetAmount(ctx context.Context, db dbx.Builder, id string, amount int64) error {
	_, err := db.Update("points", dbx.Params{"amount": amount}, dbx.HashExp{"id": id}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("update point amount: %w", err)
	}
	return nil
}

// ListExpired returns grants whose expiry has passed, including exhausted
// rows still awaiting cleanup.
func (PointStore) ListExpired(ctx context.Context, db dbx.Builder, now time.Time) ([]models.Point, error) {
	var rows []models.Point
	err := db.Select("*").From("points").
		Where(dbx.NewExp("expires_at <= {:now}", dbx.Params{"now": now})).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("list expired points: %w", err)
	}
	return rows, nil
}

func (PointStore) Delete(ctx context.Context, db dbx.Builder, id string) error {
	_, err := db.Delete("points", dbx.HashExp{"id": id}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("delete point grant: %w", err)
	}
	return nil
}

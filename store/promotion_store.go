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

type PromotionStore struct{}

func (PromotionStore) Create(ctx context.Context, db dbx.Builder, p *models.Promotion) error {
	_, err := db.Insert("promotions", dbx.Params{
		"id":         p.ID,
		"event_id":   p.EventID,
		"code":       p.Code,
		"discount":   p.Discount,
		"start_date": p.StartDate,
		"end_date":   p.EndDate,
		"max_uses":   p.MaxUses,
		"uses":       p.Uses,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("insert promotion: %w", err)
	}
	return nil
}

func (PromotionStore) GetByCode(ctx context.Context, db dbx.Builder, code string) (*models.Promotion, error) {
	var p models.Promotion
	err := db.Select("*").From("promotions").
		Where(dbx.HashExp{"code": code}).
		WithContext(ctx).
		One(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get promotion by code: %w", err)
	}
	return &p, nil
}

// Validate checks code against eventID at time now without consuming a use.
func (s PromotionStore) Validate(ctx context.Context, db dbx.Builder, code, eventID string, now time.Time) (*models.Promotion, error) {
	p, err := s.GetByCode(ctx, db, code)
	if errors.Is(err, status.ErrNotFound) {
		return nil, status.ErrInvalidVoucher
	}
	if err != nil {
		return nil, err
	}
	if p.EventID != eventID || !p.Active(now) {
		return nil, status.ErrInvalidVoucher
	}
	return p, nil
}

// Apply consumes one use. The guarded increment re-checks the window and the
// cap inside the caller's transaction, so two concurrent purchases cannot
// both slip past max_uses.
func (PromotionStore) Apply(ctx context.Context, db dbx.Builder, code, eventID string, now time.Time) error {
	res, err := db.NewQuery(
		`UPDATE promotions SET uses = uses + 1
		 WHERE code = {:code} AND event_id = {:event}
		   AND start_date <= {:now} AND end_date >= {:now}
		   AND (max_uses IS NULL OR uses < max_uses)`).
		Bind(dbx.Params{"code": code, "event": eventID, "now": now}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("apply promotion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return status.ErrInvalidVoucher
	}
	return nil
}

// Release hands a use back during compensation.
func (PromotionStore) Release(ctx context.Context, db dbx.Builder, code string) error {
	_, err := db.NewQuery(
		`UPDATE promotions SET uses = uses - 1 WHERE code = {:code} AND uses > 0`).
		Bind(dbx.Params{"code": code}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("release promotion use: %w", err)
	}
	return nil
}

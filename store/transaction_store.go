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

type TransactionStore struct{}

func (TransactionStore) Create(ctx context.Context, db dbx.Builder, t *models.Transaction) error {
	_, err := db.Insert("transactions", dbx.Params{
		"id":             t.ID,
		"user_id":        t.UserID,
		"event_id":       t.EventID,
		"ticket_type_id": t.TicketTypeID,
		"quantity":       t.Quantity,
		"total_price":    t.TotalPrice,
		"status":         string(t.Status),
		"expires_at":     t.ExpiresAt,
		"voucher_code":   t.VoucherCode,
		"points_used":    t.PointsUsed,
		"payment_proof":  t.PaymentProof,
		"created_at":     t.CreatedAt,
		"updated_at":     t.UpdatedAt,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (TransactionStore) Get(ctx context.Context, db dbx.Builder, id string) (*models.Transaction, error) {
	var t models.Transaction
	err := db.Select("*").From("transactions").
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return &t, nil
}

// Transition moves the row from one status to another. The guard on the
// current status makes replayed transitions (and therefore replayed
// compensations) a no-op: the second caller sees ErrInvalidStateTransition.
func (TransactionStore) Transition(ctx context.Context, db dbx.Builder, id string, from, to models.TransactionStatus, now time.Time) error {
	res, err := db.NewQuery(
		`UPDATE transactions SET status = {:to}, updated_at = {:now}
		 WHERE id = {:id} AND status = {:from}`).
		Bind(dbx.Params{"id": id, "from": string(from), "to": string(to), "now": now}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("transition transaction %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return status.ErrInvalidStateTransition
	}
	return nil
}

// AttachProof records the payment proof while moving the row out of
// WAITING_FOR_PAYMENT, in one guarded statement.
func (TransactionStore) AttachProof(ctx context.Context, db dbx.Builder, id, proof string, now time.Time) error {
	res, err := db.NewQuery(
		`UPDATE transactions SET status = {:to}, payment_proof = {:proof}, updated_at = {:now}
		 WHERE id = {:id} AND status = {:from}`).
		Bind(dbx.Params{
			"id":    id,
			"from":  string(models.StatusWaitingForPayment),
			"to":    string(models.StatusWaitingForAdmin),
			"proof": proof,
			"now":   now,
		}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("attach proof to transaction %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return status.ErrInvalidStateTransition
	}
	return nil
}

// ListExpiredPayments returns transactions whose payment window has lapsed
// without a proof upload.
func (TransactionStore) ListExpiredPayments(ctx context.Context, db dbx.Builder, now time.Time) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := db.Select("*").From("transactions").
		Where(dbx.NewExp("status = {:st} AND expires_at IS NOT NULL AND expires_at < {:now}",
			dbx.Params{"st": string(models.StatusWaitingForPayment), "now": now})).
		WithContext(ctx).
		All(&txns)
	if err != nil {
		return nil, fmt.Errorf("list expired payments: %w", err)
	}
	return txns, nil
}

// ListStaleConfirmations returns transactions waiting on the organizer for
// longer than the staleness cutoff.
func (TransactionStore) ListStaleConfirmations(ctx context.Context, db dbx.Builder, cutoff time.Time) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := db.Select("*").From("transactions").
		Where(dbx.NewExp("status = {:st} AND updated_at < {:cutoff}",
			dbx.Params{"st": string(models.StatusWaitingForAdmin), "cutoff": cutoff})).
		WithContext(ctx).
		All(&txns)
	if err != nil {
		return nil, fmt.Errorf("list stale confirmations: %w", err)
	}
	return txns, nil
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/redis/go-redis/v9"

	"eventix/internal/status"
	"eventix/models"
	"eventix/monitoring"
	"eventix/store"
)

// LedgerService owns the reward-points ledger. Every mutation moves the
// denormalized users.user_points counter inside the same dbx.Builder unit
// as the Point rows, so the counter never drifts from the row sum.
//
// Mutating methods take a dbx.Builder because they run inside a caller's
// transaction (purchase, compensation, referral). Balance reads go through
// a short-TTL redis cache; orchestrators call InvalidateBalance after their
// transaction commits.
type LedgerService struct {
	db    *dbx.DB
	redis *redis.Client

	users  store.UserStore
	points store.PointStore

	cacheTTL     time.Duration
	expiryMonths int
	logger       *slog.Logger
}

func NewLedgerService(db *dbx.DB, redisClient *redis.Client, cacheTTL time.Duration, expiryMonths int) *LedgerService {
	return &LedgerService{
		db:           db,
		redis:        redisClient,
		cacheTTL:     cacheTTL,
		expiryMonths: expiryMonths,
		logger:       slog.Default().With("service", "ledger"),
	}
}

// Grant creates a new Point row for the user and raises the counter.
func (s *LedgerService) Grant(ctx context.Context, db dbx.Builder, userID string, amount int64, expiresAt time.Time) error {
	if amount <= 0 {
		return fmt.Errorf("grant amount must be positive, got %d", amount)
	}

	p := &models.Point{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.points.Insert(ctx, db, p); err != nil {
		return err
	}
	if err := s.users.AddPoints(ctx, db, userID, amount); err != nil {
		return err
	}

	monitoring.PointsGranted.Add(float64(amount))
	return nil
}

// GrantWithDefaultExpiry is Grant with the configured expiry horizon.
func (s *LedgerService) GrantWithDefaultExpiry(ctx context.Context, db dbx.Builder, userID string, amount int64) error {
	return s.Grant(ctx, db, userID, amount, time.Now().UTC().AddDate(0, s.expiryMonths, 0))
}

// Consume debits amount from the user's balance, draining grant rows in
// soonest-expiring-first order. Fails with ErrInsufficientPoints when the
// balance cannot cover the amount; in that case nothing is changed.
func (s *LedgerService) Consume(ctx context.Context, db dbx.Builder, userID string, amount int64, now time.Time) error {
	if amount <= 0 {
		return fmt.Errorf("consume amount must be positive, got %d", amount)
	}

	// The guarded counter decrement is the authoritative balance check.
	if err := s.users.AddPoints(ctx, db, userID, -amount); err != nil {
		return err
	}

	rows, err := s.points.ListActive(ctx, db, userID, now)
	if err != nil {
		return err
	}

	remaining := amount
	for _, row := range rows {
		if remaining == 0 {
			break
		}
		take := row.Amount
		if take > remaining {
			take = remaining
		}
		if err := s.points.SetAmount(ctx, db, row.ID, row.Amount-take); err != nil {
			return err
		}
		remaining -= take
	}
	if remaining > 0 {
		// Counter said yes but the rows could not cover it. Abort the whole
		// unit rather than leave the ledger and counter disagreeing.
		return fmt.Errorf("ledger rows short by %d for user %s: %w", remaining, userID, status.ErrInsufficientPoints)
	}

	monitoring.PointsConsumed.Add(float64(amount))
	return nil
}

// Balance returns the user's current points balance. Reads are served from
// redis when warm; a miss falls back to the counter column. The value may
// be stale by at most cacheTTL.
func (s *LedgerService) Balance(ctx context.Context, userID string) (int64, error) {
	key := balanceKey(userID)

	if s.redis != nil {
		if v, err := s.redis.Get(ctx, key).Result(); err == nil {
			if bal, perr := strconv.ParseInt(v, 10, 64); perr == nil {
				return bal, nil
			}
		}
	}

	u, err := s.users.Get(ctx, s.db, userID)
	if err != nil {
		return 0, err
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, strconv.FormatInt(u.UserPoints, 10), s.cacheTTL).Err(); err != nil {
			s.logger.Warn("balance cache write failed", "user_id", userID, "error", err)
		}
	}
	return u.UserPoints, nil
}

// InvalidateBalance drops the cached balance after a committed mutation.
func (s *LedgerService) InvalidateBalance(ctx context.Context, userID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, balanceKey(userID)).Err(); err != nil {
		s.logger.Warn("balance cache invalidation failed", "user_id", userID, "error", err)
	}
}

// SweepExpired deletes expired grant rows, lowering each owner's counter by
// whatever amount the row still held. Runs as its own atomic unit.
func (s *LedgerService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	touched := map[string]struct{}{}
	swept := 0

	err := s.db.Transactional(func(tx *dbx.Tx) error {
		rows, err := s.points.ListExpired(ctx, tx, now)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row.Amount > 0 {
				if err := s.users.AddPoints(ctx, tx, row.UserID, -row.Amount); err != nil {
					return err
				}
			}
			if err := s.points.Delete(ctx, tx, row.ID); err != nil {
				return err
			}
			touched[row.UserID] = struct{}{}
			swept++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep expired points: %w", err)
	}

	for userID := range touched {
		s.InvalidateBalance(ctx, userID)
	}
	return swept, nil
}

func balanceKey(userID string) string {
	return fmt.Sprintf("points:balance:%s", userID)
}

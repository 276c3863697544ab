package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"eventix/internal/status"
	"eventix/models"
	"eventix/utils"
)

// PaymentService mirrors open payment sessions into redis so the payment
// page can poll amount/status without hitting the database. The mirror is
// a convenience view; the transaction row stays the source of truth.
type PaymentService struct {
	redis  *redis.Client
	newRef func() (string, error)
	logger *slog.Logger
}

func NewPaymentService(redisClient *redis.Client) *PaymentService {
	return &PaymentService{
		redis:  redisClient,
		newRef: func() (string, error) { return utils.GenerateCode(4) },
		logger: slog.Default().With("service", "payment"),
	}
}

// CreateSession stores the session hash, set to fade out at the payment
// deadline, and builds the bank-transfer QR payload.
func (s *PaymentService) CreateSession(ctx context.Context, t *models.Transaction) error {
	if s.redis == nil || t.ExpiresAt == nil {
		return nil
	}

	refID, err := s.newRef()
	if err != nil {
		return fmt.Errorf("generate payment reference: %w", err)
	}

	amount := decimal.NewFromInt(t.TotalPrice)
	qrPayload := fmt.Sprintf(`{"transaction_id":"%s","amount":"%s","reference":"%s-%s"}`,
		t.ID, amount.String(), t.ID, refID)

	key := sessionKey(t.ID)
	err = s.redis.HSet(ctx, key,
		"transaction_id", t.ID,
		"user_id", t.UserID,
		"amount", amount.String(),
		"status", string(t.Status),
		"reference", refID,
		"qr_payload", qrPayload,
		"expires_at", t.ExpiresAt.Unix(),
	).Err()
	if err != nil {
		return fmt.Errorf("store payment session: %w", err)
	}

	if t.ExpiresAt.After(time.Now()) {
		err = s.redis.ExpireAt(ctx, key, *t.ExpiresAt).Err()
	} else {
		err = s.redis.Expire(ctx, key, time.Minute).Err()
	}
	if err != nil {
		return fmt.Errorf("expire payment session: %w", err)
	}
	return nil
}

// GetSession returns the mirrored session fields.
func (s *PaymentService) GetSession(ctx context.Context, transactionID string) (map[string]string, error) {
	if s.redis == nil {
		return nil, status.ErrNotFound
	}
	data, err := s.redis.HGetAll(ctx, sessionKey(transactionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load payment session: %w", err)
	}
	if len(data) == 0 {
		return nil, status.ErrNotFound
	}
	return data, nil
}

// CloseSession marks the mirror with the terminal status and lets it fade
// out shortly after, best-effort.
func (s *PaymentService) CloseSession(ctx context.Context, transactionID string, st models.TransactionStatus) {
	if s.redis == nil {
		return
	}
	key := sessionKey(transactionID)
	if err := s.redis.HSet(ctx, key, "status", string(st)).Err(); err != nil {
		s.logger.Warn("payment session close failed", "transaction_id", transactionID, "error", err)
		return
	}
	s.redis.Expire(ctx, key, 10*time.Minute)
}

func sessionKey(transactionID string) string {
	return fmt.Sprintf("payment:%s", transactionID)
}

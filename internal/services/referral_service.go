package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"golang.org/x/crypto/bcrypt"

	"eventix/internal/status"
	"eventix/models"
	"eventix/store"
	"eventix/utils"
)

// ReferralService registers accounts and settles referral rewards: the
// referrer receives a points grant, the referee a single-use coupon. Both
// sides of a referral are written in one dbx transaction so the reward
// ledger never records half a referral.
type ReferralService struct {
	db *dbx.DB

	users   store.UserStore
	coupons store.CouponStore

	ledger   *LedgerService
	notifier *Notifier

	referralPoints int64
	couponDiscount int64
	expiryMonths   int
	logger         *slog.Logger
}

func NewReferralService(db *dbx.DB, ledger *LedgerService, notifier *Notifier, referralPoints, couponDiscount int64, expiryMonths int) *ReferralService {
	return &ReferralService{
		db:             db,
		ledger:         ledger,
		notifier:       notifier,
		referralPoints: referralPoints,
		couponDiscount: couponDiscount,
		expiryMonths:   expiryMonths,
		logger:         slog.Default().With("service", "referral"),
	}
}

type RegisterRequest struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Password     string  `json:"password"`
	Role         string  `json:"role,omitempty"`
	ReferralCode *string `json:"referral_code,omitempty"`
}

// Register creates the account and, when a referral code was supplied,
// settles the referral rewards in the same transaction as the user insert.
func (s *ReferralService) Register(ctx context.Context, req RegisterRequest) (*models.User, *models.Coupon, error) {
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, nil, fmt.Errorf("name, email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	ownCode, err := utils.GenerateCode(4)
	if err != nil {
		return nil, nil, fmt.Errorf("generate referral code: %w", err)
	}

	role := req.Role
	if role == "" {
		role = "customer"
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         role,
		ReferralCode: ownCode,
		CreatedAt:    time.Now().UTC(),
	}

	var coupon *models.Coupon
	var referrerID string

	err = s.db.Transactional(func(tx *dbx.Tx) error {
		if err := s.users.Create(ctx, tx, user); err != nil {
			return err
		}
		if req.ReferralCode == nil || *req.ReferralCode == "" {
			return nil
		}
		c, refID, err := s.applyReferralTx(ctx, tx, user, *req.ReferralCode)
		if err != nil {
			return err
		}
		coupon = c
		referrerID = refID
		user.ReferredBy = &refID
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if referrerID != "" {
		s.ledger.InvalidateBalance(ctx, referrerID)
	}
	s.notifier.SendEmail(user.Email, "Welcome to Eventix",
		fmt.Sprintf("<p>Welcome, %s! Your referral code is <b>%s</b>.</p>", user.Name, user.ReferralCode))

	return user, coupon, nil
}

// ApplyReferral links an existing user to a referrer by code and settles
// the rewards. A user can be referred at most once and never by themselves.
func (s *ReferralService) ApplyReferral(ctx context.Context, userID, code string) (*models.Coupon, error) {
	var coupon *models.Coupon
	var referrerID string

	err := s.db.Transactional(func(tx *dbx.Tx) error {
		user, err := s.users.Get(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.ReferredBy != nil {
			return status.ErrAlreadyReferred
		}
		c, refID, err := s.applyReferralTx(ctx, tx, user, code)
		if err != nil {
			return err
		}
		coupon = c
		referrerID = refID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.ledger.InvalidateBalance(ctx, referrerID)
	return coupon, nil
}

func (s *ReferralService) applyReferralTx(ctx context.Context, tx dbx.Builder, user *models.User, code string) (*models.Coupon, string, error) {
	referrer, err := s.users.GetByReferralCode(ctx, tx, code)
	if errors.Is(err, status.ErrNotFound) {
		return nil, "", status.ErrInvalidReferralCode
	}
	if err != nil {
		return nil, "", err
	}
	if referrer.ID == user.ID {
		return nil, "", status.ErrSelfReferral
	}

	if err := s.users.SetReferredBy(ctx, tx, user.ID, referrer.ID); err != nil {
		return nil, "", err
	}

	if err := s.ledger.GrantWithDefaultExpiry(ctx, tx, referrer.ID, s.referralPoints); err != nil {
		return nil, "", err
	}

	couponCode, err := utils.GenerateCode(4)
	if err != nil {
		return nil, "", fmt.Errorf("generate coupon code: %w", err)
	}
	coupon := &models.Coupon{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Code:      "CPN-" + couponCode,
		Discount:  s.couponDiscount,
		ExpiresAt: time.Now().UTC().AddDate(0, s.expiryMonths, 0),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.coupons.Create(ctx, tx, coupon); err != nil {
		return nil, "", err
	}

	return coupon, referrer.ID, nil
}

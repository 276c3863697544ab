package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"

	"eventix/internal/status"
	"eventix/models"
	"eventix/monitoring"
	"eventix/store"
)

// TransactionService is the purchase state machine. Every state-changing
// operation runs as one dbx transaction covering the transaction row, the
// inventory pool, the reward ledger and the discount instrument, so partial
// application is never observable. Side channels (mail, realtime, session
// mirror, metrics) fire only after commit and are best-effort.
type TransactionService struct {
	db *dbx.DB

	events     store.EventStore
	txns       store.TransactionStore
	users      store.UserStore
	coupons    store.CouponStore
	promotions store.PromotionStore

	ledger   *LedgerService
	payments *PaymentService
	notifier *Notifier

	paymentWindow time.Duration
	logger        *slog.Logger
}

func NewTransactionService(db *dbx.DB, ledger *LedgerService, payments *PaymentService, notifier *Notifier, paymentWindow time.Duration) *TransactionService {
	return &TransactionService{
		db:            db,
		ledger:        ledger,
		payments:      payments,
		notifier:      notifier,
		paymentWindow: paymentWindow,
		logger:        slog.Default().With("service", "transaction"),
	}
}

type CreateTransactionRequest struct {
	UserID       string  `json:"user_id"`
	EventID      string  `json:"event_id"`
	Quantity     int     `json:"quantity"`
	TicketTypeID *string `json:"ticket_type_id,omitempty"`
	VoucherCode  *string `json:"voucher_code,omitempty"`
	PointsUsed   int64   `json:"points_used"`
}

// discountInstrument is the resolved form of a voucher code: either an
// event-scoped promotion or one of the purchaser's unused coupons. Each kind
// carries its own redeem and rollback rule.
type discountInstrument struct {
	promotion *models.Promotion
	coupon    *models.Coupon
}

func (d *discountInstrument) amount() int64 {
	switch {
	case d == nil:
		return 0
	case d.promotion != nil:
		return d.promotion.Discount
	case d.coupon != nil:
		return d.coupon.Discount
	}
	return 0
}

// Create runs the purchase. Validation happens up front; all mutations
// (inventory decrement, ledger debit, instrument redemption, row insert)
// commit as one unit. A zero total completes immediately as DONE.
func (s *TransactionService) Create(ctx context.Context, req CreateTransactionRequest) (*models.Transaction, error) {
	if req.Quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1, got %d", req.Quantity)
	}
	if req.PointsUsed < 0 {
		return nil, fmt.Errorf("points_used must not be negative, got %d", req.PointsUsed)
	}

	now := time.Now().UTC()
	var txn *models.Transaction

	err := s.db.Transactional(func(tx *dbx.Tx) error {
		user, err := s.users.Get(ctx, tx, req.UserID)
		if err != nil {
			return err
		}

		event, err := s.events.Get(ctx, tx, req.EventID)
		if err != nil {
			return err
		}

		unitPrice := event.Price
		if req.TicketTypeID != nil {
			tt, err := s.events.GetTicketType(ctx, tx, *req.TicketTypeID, event.ID)
			if err != nil {
				return err
			}
			unitPrice = tt.Price
		}

		instrument, err := s.resolveInstrument(ctx, tx, req, now)
		if err != nil {
			return err
		}

		// The requested amount must fit the raw balance even when the
		// charged amount ends up capped at the post-voucher remainder.
		if req.PointsUsed > user.UserPoints {
			return status.ErrInsufficientPoints
		}

		quote := PriceQuote(unitPrice, req.Quantity, instrument.amount(), req.PointsUsed)

		if req.TicketTypeID != nil {
			err = s.events.ReserveTicketUnits(ctx, tx, *req.TicketTypeID, req.Quantity)
		} else {
			err = s.events.ReserveSeats(ctx, tx, event.ID, req.Quantity)
		}
		if err != nil {
			return err
		}

		switch {
		case instrument.promotion != nil:
			if err := s.promotions.Apply(ctx, tx, instrument.promotion.Code, event.ID, now); err != nil {
				return err
			}
		case instrument.coupon != nil:
			if err := s.coupons.Redeem(ctx, tx, instrument.coupon.ID, now); err != nil {
				return err
			}
		}

		if quote.PointsCharged > 0 {
			if err := s.ledger.Consume(ctx, tx, user.ID, quote.PointsCharged, now); err != nil {
				return err
			}
		}

		txn = &models.Transaction{
			ID:           uuid.NewString(),
			UserID:       user.ID,
			EventID:      event.ID,
			TicketTypeID: req.TicketTypeID,
			Quantity:     req.Quantity,
			TotalPrice:   quote.Total,
			Status:       models.StatusWaitingForPayment,
			VoucherCode:  req.VoucherCode,
			PointsUsed:   quote.PointsCharged,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if quote.Total == 0 {
			txn.Status = models.StatusDone
		} else {
			expires := now.Add(s.paymentWindow)
			txn.ExpiresAt = &expires
		}

		return s.txns.Create(ctx, tx, txn)
	})
	if err != nil {
		return nil, err
	}

	monitoring.TransactionsCreated.WithLabelValues(string(txn.Status)).Inc()
	if txn.PointsUsed > 0 {
		s.ledger.InvalidateBalance(ctx, txn.UserID)
	}
	if txn.Status == models.StatusWaitingForPayment {
		if err := s.payments.CreateSession(ctx, txn); err != nil {
			s.logger.Warn("payment session creation failed", "transaction_id", txn.ID, "error", err)
		}
	}
	s.notifier.PublishStatus(txn.UserID, txn)

	return txn, nil
}

// resolveInstrument maps a voucher code to a promotion for this event or,
// failing that, to one of the purchaser's coupons.
func (s *TransactionService) resolveInstrument(ctx context.Context, tx dbx.Builder, req CreateTransactionRequest, now time.Time) (*discountInstrument, error) {
	if req.VoucherCode == nil || *req.VoucherCode == "" {
		return &discountInstrument{}, nil
	}
	code := *req.VoucherCode

	promo, err := s.promotions.Validate(ctx, tx, code, req.EventID, now)
	if err == nil {
		return &discountInstrument{promotion: promo}, nil
	}
	if !errors.Is(err, status.ErrInvalidVoucher) {
		return nil, err
	}

	coupon, err := s.coupons.GetByCode(ctx, tx, req.UserID, code)
	if err != nil {
		return nil, err
	}
	if coupon.IsUsed || !coupon.ExpiresAt.After(now) {
		return nil, status.ErrInvalidVoucher
	}
	return &discountInstrument{coupon: coupon}, nil
}

// Get returns the transaction by id.
func (s *TransactionService) Get(ctx context.Context, id string) (*models.Transaction, error) {
	return s.txns.Get(ctx, s.db, id)
}

// UploadPaymentProof attaches the proof reference and hands the transaction
// to the organizer for confirmation. Legal only from WAITING_FOR_PAYMENT.
func (s *TransactionService) UploadPaymentProof(ctx context.Context, id, proof string) (*models.Transaction, error) {
	if proof == "" {
		return nil, status.ErrMissingProof
	}

	now := time.Now().UTC()
	var txn *models.Transaction

	err := s.db.Transactional(func(tx *dbx.Tx) error {
		if _, err := s.txns.Get(ctx, tx, id); err != nil {
			return err
		}
		if err := s.txns.AttachProof(ctx, tx, id, proof, now); err != nil {
			return err
		}
		var err error
		txn, err = s.txns.Get(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	monitoring.TransactionTransitions.WithLabelValues(string(models.StatusWaitingForAdmin), "proof_upload").Inc()
	s.payments.CloseSession(ctx, id, models.StatusWaitingForAdmin)
	s.notifier.PublishStatus(txn.UserID, txn)
	return txn, nil
}

// Confirm marks a proof-backed transaction as paid. Organizer-only; the
// success path keeps the inventory decremented.
func (s *TransactionService) Confirm(ctx context.Context, id, organizerID string) (*models.Transaction, error) {
	now := time.Now().UTC()
	var txn *models.Transaction

	err := s.db.Transactional(func(tx *dbx.Tx) error {
		current, err := s.txns.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.requireOrganizer(ctx, tx, current.EventID, organizerID); err != nil {
			return err
		}
		if err := s.txns.Transition(ctx, tx, id, models.StatusWaitingForAdmin, models.StatusDone, now); err != nil {
			return err
		}
		txn, err = s.txns.Get(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	monitoring.TransactionTransitions.WithLabelValues(string(models.StatusDone), "confirm").Inc()
	s.payments.CloseSession(ctx, id, models.StatusDone)
	s.notifier.PublishStatus(txn.UserID, txn)
	s.sendStatusEmail(ctx, txn, "Your tickets are confirmed",
		"<p>Your payment was confirmed. See you at the event!</p>")
	return txn, nil
}

// Reject declines a proof-backed transaction and rolls its reservations
// back.
func (s *TransactionService) Reject(ctx context.Context, id, organizerID string) (*models.Transaction, error) {
	txn, err := s.failTransition(ctx, id, models.StatusWaitingForAdmin, models.StatusRejected, "reject", func(tx *dbx.Tx, current *models.Transaction) error {
		return s.requireOrganizer(ctx, tx, current.EventID, organizerID)
	})
	if err != nil {
		return nil, err
	}

	s.sendStatusEmail(ctx, txn, "Your payment was rejected",
		"<p>The organizer rejected your payment proof. Seats and any points or vouchers you used have been returned.</p>")
	return txn, nil
}

// Expire moves a transaction whose payment window lapsed to EXPIRED, with
// compensation. Driven by the sweeper.
func (s *TransactionService) Expire(ctx context.Context, id string) (*models.Transaction, error) {
	return s.failTransition(ctx, id, models.StatusWaitingForPayment, models.StatusExpired, "expire", nil)
}

// AutoCancel cancels a transaction stuck waiting on the organizer past the
// staleness threshold, with compensation. Driven by the sweeper.
func (s *TransactionService) AutoCancel(ctx context.Context, id string) (*models.Transaction, error) {
	return s.failTransition(ctx, id, models.StatusWaitingForAdmin, models.StatusCanceled, "auto_cancel", nil)
}

// failTransition drives one of the failure-terminal transitions together
// with its compensation. The status guard in Transition gates the whole
// unit: a replay finds the row already terminal and changes nothing.
func (s *TransactionService) failTransition(ctx context.Context, id string, from, to models.TransactionStatus, trigger string, check func(*dbx.Tx, *models.Transaction) error) (*models.Transaction, error) {
	now := time.Now().UTC()
	var txn *models.Transaction

	err := s.db.Transactional(func(tx *dbx.Tx) error {
		current, err := s.txns.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(tx, current); err != nil {
				return err
			}
		}
		if err := s.txns.Transition(ctx, tx, id, from, to, now); err != nil {
			return err
		}
		if err := s.compensate(ctx, tx, current, now); err != nil {
			return err
		}
		txn, err = s.txns.Get(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	monitoring.TransactionTransitions.WithLabelValues(string(to), trigger).Inc()
	monitoring.Compensations.Inc()
	if txn.PointsUsed > 0 {
		s.ledger.InvalidateBalance(ctx, txn.UserID)
	}
	s.payments.CloseSession(ctx, id, to)
	s.notifier.PublishStatus(txn.UserID, txn)
	return txn, nil
}

// compensate reverses the reservations made at create time: inventory goes
// back, consumed points come back as a fresh grant, and the discount
// instrument becomes usable again.
func (s *TransactionService) compensate(ctx context.Context, tx dbx.Builder, t *models.Transaction, now time.Time) error {
	var err error
	if t.TicketTypeID != nil {
		err = s.events.ReleaseTicketUnits(ctx, tx, *t.TicketTypeID, t.Quantity)
	} else {
		err = s.events.ReleaseSeats(ctx, tx, t.EventID, t.Quantity)
	}
	if err != nil {
		return err
	}

	if t.PointsUsed > 0 {
		// Credited back as a new grant with a fresh expiry; the originally
		// consumed rows are not restored.
		if err := s.ledger.GrantWithDefaultExpiry(ctx, tx, t.UserID, t.PointsUsed); err != nil {
			return err
		}
	}

	if t.VoucherCode != nil && *t.VoucherCode != "" {
		if err := s.restoreInstrument(ctx, tx, t); err != nil {
			return err
		}
	}
	return nil
}

func (s *TransactionService) restoreInstrument(ctx context.Context, tx dbx.Builder, t *models.Transaction) error {
	code := *t.VoucherCode

	promo, err := s.promotions.GetByCode(ctx, tx, code)
	if err == nil && promo.EventID == t.EventID {
		return s.promotions.Release(ctx, tx, code)
	}
	if err != nil && !errors.Is(err, status.ErrNotFound) {
		return err
	}

	coupon, err := s.coupons.GetByCode(ctx, tx, t.UserID, code)
	if err != nil {
		if errors.Is(err, status.ErrInvalidVoucher) {
			// Instrument vanished since redemption; nothing left to restore.
			s.logger.Warn("voucher code no longer resolvable during compensation",
				"transaction_id", t.ID, "code", code)
			return nil
		}
		return err
	}
	return s.coupons.Restore(ctx, tx, coupon.ID)
}

func (s *TransactionService) requireOrganizer(ctx context.Context, tx dbx.Builder, eventID, organizerID string) error {
	event, err := s.events.Get(ctx, tx, eventID)
	if err != nil {
		return err
	}
	if event.OrganizerID != organizerID {
		return status.ErrForbidden
	}
	return nil
}

// sendStatusEmail looks the recipient up and sends best-effort.
func (s *TransactionService) sendStatusEmail(ctx context.Context, t *models.Transaction, subject, html string) {
	user, err := s.users.Get(ctx, s.db, t.UserID)
	if err != nil {
		s.logger.Warn("recipient lookup failed", "user_id", t.UserID, "error", err)
		return
	}
	s.notifier.SendEmail(user.Email, subject, html)
}

package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/pocketbase/dbx"

	"eventix/models"
	"eventix/monitoring"
	"eventix/store"
)

// transitionDriver is the slice of the transaction service the sweeper
// drives: the two time-based failure transitions.
type transitionDriver interface {
	Expire(ctx context.Context, id string) (*models.Transaction, error)
	AutoCancel(ctx context.Context, id string) (*models.Transaction, error)
}

// SweeperService drives the time-based transitions: expiring unpaid
// transactions, cancelling stale confirmations, and cleaning up expired
// points and coupons. Each pass isolates per-row failures so one bad row
// cannot block the rest of the sweep.
type SweeperService struct {
	db *dbx.DB

	txnStore store.TransactionStore
	coupons  store.CouponStore

	txns   transitionDriver
	ledger *LedgerService

	paymentSweepInterval      time.Duration
	confirmationSweepInterval time.Duration
	rewardSweepInterval       time.Duration
	confirmationStaleness     time.Duration

	logger *slog.Logger
}

func NewSweeperService(db *dbx.DB, txns transitionDriver, ledger *LedgerService,
	paymentSweepInterval, confirmationSweepInterval, rewardSweepInterval, confirmationStaleness time.Duration) *SweeperService {
	return &SweeperService{
		db:                        db,
		txns:                      txns,
		ledger:                    ledger,
		paymentSweepInterval:      paymentSweepInterval,
		confirmationSweepInterval: confirmationSweepInterval,
		rewardSweepInterval:       rewardSweepInterval,
		confirmationStaleness:     confirmationStaleness,
		logger:                    slog.Default().With("service", "sweeper"),
	}
}

// Run starts the sweep loops and blocks until ctx is cancelled.
func (s *SweeperService) Run(ctx context.Context) {
	go s.loop(ctx, s.paymentSweepInterval, "payment_expiry", s.sweepExpiredPayments)
	go s.loop(ctx, s.confirmationSweepInterval, "stale_confirmation", s.sweepStaleConfirmations)
	go s.loop(ctx, s.rewardSweepInterval, "rewards", s.sweepRewards)
	<-ctx.Done()
}

func (s *SweeperService) loop(ctx context.Context, interval time.Duration, name string, pass func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if err := pass(ctx); err != nil {
				s.logger.Error("sweep pass failed", "sweep", name, "error", err)
				monitoring.SweepRuns.WithLabelValues(name, "error").Inc()
			} else {
				monitoring.SweepRuns.WithLabelValues(name, "ok").Inc()
			}
			monitoring.SweepDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}
	}
}

// CheckTransactionExpirations is the idempotent entry point covering both
// transaction sweeps in one call. Tests and the scheduler both use it.
func (s *SweeperService) CheckTransactionExpirations(ctx context.Context) {
	if err := s.sweepExpiredPayments(ctx); err != nil {
		s.logger.Error("payment expiry sweep failed", "error", err)
	}
	if err := s.sweepStaleConfirmations(ctx); err != nil {
		s.logger.Error("stale confirmation sweep failed", "error", err)
	}
}

func (s *SweeperService) sweepExpiredPayments(ctx context.Context) error {
	rows, err := s.txnStore.ListExpiredPayments(ctx, s.db, time.Now().UTC())
	if err != nil {
		return err
	}
	for _, t := range rows {
		if _, err := s.txns.Expire(ctx, t.ID); err != nil {
			// Leave the row for the next cycle; a concurrent transition may
			// simply have beaten us to it.
			s.logger.Warn("expire failed", "transaction_id", t.ID, "error", err)
		}
	}
	return nil
}

func (s *SweeperService) sweepStaleConfirmations(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.confirmationStaleness)
	rows, err := s.txnStore.ListStaleConfirmations(ctx, s.db, cutoff)
	if err != nil {
		return err
	}
	for _, t := range rows {
		if _, err := s.txns.AutoCancel(ctx, t.ID); err != nil {
			s.logger.Warn("auto-cancel failed", "transaction_id", t.ID, "error", err)
		}
	}
	return nil
}

func (s *SweeperService) sweepRewards(ctx context.Context) error {
	now := time.Now().UTC()

	swept, err := s.ledger.SweepExpired(ctx, now)
	if err != nil {
		return err
	}
	if swept > 0 {
		s.logger.Info("expired point grants swept", "count", swept)
	}

	deleted, err := s.coupons.DeleteExpired(ctx, s.db, now)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.logger.Info("expired coupons deleted", "count", deleted)
	}
	return nil
}

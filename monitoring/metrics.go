package monitoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"eventix/models"
)

var (
	TransactionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transactions_created_total",
			Help: "Purchase transactions created, by initial status",
		},
		[]string{"status"},
	)

	TransactionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transaction_transitions_total",
			Help: "Status transitions driven, by target status and trigger",
		},
		[]string{"to_status", "trigger"},
	)

	Compensations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transaction_compensations_total",
			Help: "Compensating rollbacks applied to failed transactions",
		},
	)

	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Sweeper passes, by sweep kind and outcome",
		},
		[]string{"sweep", "status"},
	)

	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Duration of sweeper passes",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"sweep"},
	)

	PointsGranted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "points_granted_total",
			Help: "Loyalty points granted",
		},
	)

	PointsConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "points_consumed_total",
			Help: "Loyalty points consumed",
		},
	)

	transactionsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transactions_by_status",
			Help: "Current number of transactions per status",
		},
		[]string{"status"},
	)
)

// Monitor periodically samples transaction counts from the database into
// the status gauge.
type Monitor struct {
	db     *dbx.DB
	logger *slog.Logger
}

func NewMonitor(db *dbx.DB) *Monitor {
	return &Monitor{db: db, logger: slog.Default().With("service", "monitor")}
}

// Collect runs until ctx is cancelled, sampling every 30 seconds.
func (m *Monitor) Collect(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

func (m *Monitor) sample(ctx context.Context) {
	var rows []struct {
		Status string `db:"status"`
		Count  int64  `db:"count"`
	}
	err := m.db.Select("status", "COUNT(*) AS count").
		From("transactions").
		GroupBy("status").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		m.logger.Warn("transaction status sampling failed", "error", err)
		return
	}

	counts := map[string]int64{}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	for _, st := range []models.TransactionStatus{
		models.StatusWaitingForPayment,
		models.StatusWaitingForAdmin,
		models.StatusDone,
		models.StatusRejected,
		models.StatusExpired,
		models.StatusCanceled,
	} {
		transactionsByStatus.WithLabelValues(string(st)).Set(float64(counts[string(st)]))
	}
}

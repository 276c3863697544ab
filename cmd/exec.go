package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"eventix/config"
	"eventix/internal/handlers"
	"eventix/internal/services"
	"eventix/monitoring"
	"eventix/security"
	"eventix/store"
	"eventix/utils"
)

func Start() error {
	// Load configuration
	cfg := config.LoadConfig()

	// Open the database
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub
	var pn *pubnub.PubNub
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		pn = pubnub.NewPubNub(pnConfig)
	}

	// Initialize mailer
	var mailer services.Mailer
	if cfg.SMTPHost != "" {
		mailer = services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	}

	// Initialize services
	notifier := services.NewNotifier(mailer, pn)
	ledgerService := services.NewLedgerService(db, redisClient, cfg.PointsBalanceCacheTTL, cfg.PointsExpiryMonths)
	paymentService := services.NewPaymentService(redisClient)
	transactionService := services.NewTransactionService(db, ledgerService, paymentService, notifier, cfg.PaymentWindow)
	referralService := services.NewReferralService(db, ledgerService, notifier,
		cfg.ReferralPoints, cfg.ReferralCouponAmount, cfg.PointsExpiryMonths)
	sweeper := services.NewSweeperService(db, transactionService, ledgerService,
		cfg.PaymentSweepInterval, cfg.ConfirmationSweepInterval, cfg.RewardSweepInterval, cfg.ConfirmationStaleness)

	// Initialize handlers
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	rewardsHandler := handlers.NewRewardsHandler(ledgerService, referralService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	rateLimiter := security.NewRateLimiter(redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start background tasks
	go sweeper.Run(ctx)
	go monitoring.NewMonitor(db).Collect(ctx)

	if cfg.EnableMetrics {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	// Register routes
	e := echo.New()

	e.POST("/api/v1/transactions", transactionHandler.Create, rateLimiter.PurchaseRateLimit(), rateLimiter.AntiBotMiddleware())
	e.GET("/api/v1/transactions/:id", transactionHandler.Get)
	e.POST("/api/v1/transactions/:id/payment-proof", transactionHandler.UploadPaymentProof)
	e.POST("/api/v1/transactions/:id/confirm", transactionHandler.Confirm)
	e.POST("/api/v1/transactions/:id/reject", transactionHandler.Reject)
	e.PATCH("/api/v1/transactions/:id/status", transactionHandler.UpdateStatus)

	e.GET("/api/v1/payments/:transactionId", paymentHandler.GetPaymentDetails)

	e.GET("/api/v1/points/balance", rewardsHandler.GetBalance)
	e.POST("/api/v1/auth/register", rewardsHandler.Register)
	e.POST("/api/v1/referrals/apply", rewardsHandler.ApplyReferral)

	e.GET("/health", func(c echo.Context) error {
		if err := utils.RedisHealthCheck(redisClient); err != nil {
			return c.JSON(503, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(200, map[string]string{"status": "healthy"})
	})

	// Setup graceful shutdown
	gracefulCtx, gracefulCancel := context.WithCancel(context.Background())
	defer gracefulCancel()
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutdown signal received, cleaning up...")
		cancel()
		gracefulCancel()
	}()

	log.Printf("Server listening on :%s", cfg.Port)
	sc := echo.StartConfig{
		Address:         ":" + cfg.Port,
		GracefulContext: gracefulCtx,
		GracefulTimeout: 10 * time.Second,
		OnShutdownError: func(err error) {
			slog.Error("server shutdown failed", "error", err)
		},
	}
	return sc.Start(e)
}

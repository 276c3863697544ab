package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Database configuration
	DatabasePath string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// SMTP configuration
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Transaction lifecycle configuration
	PaymentWindow         time.Duration
	ConfirmationStaleness time.Duration

	// Sweeper configuration
	PaymentSweepInterval      time.Duration
	ConfirmationSweepInterval time.Duration
	RewardSweepInterval       time.Duration

	// Reward configuration
	PointsExpiryMonths    int
	ReferralPoints        int64
	ReferralCouponAmount  int64
	PointsBalanceCacheTTL time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Database
		DatabasePath: getEnv("DATABASE_PATH", "data/eventix.db"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// SMTP
		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnv("SMTP_PORT", "587"),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		SMTPFrom: getEnv("SMTP_FROM", "no-reply@eventix.local"),

		// Transaction lifecycle
		PaymentWindow:         getEnvAsDuration("PAYMENT_WINDOW", "2h"),
		ConfirmationStaleness: getEnvAsDuration("CONFIRMATION_STALENESS", "72h"),

		// Sweeper cadences
		PaymentSweepInterval:      getEnvAsDuration("PAYMENT_SWEEP_INTERVAL", "5m"),
		ConfirmationSweepInterval: getEnvAsDuration("CONFIRMATION_SWEEP_INTERVAL", "1h"),
		RewardSweepInterval:       getEnvAsDuration("REWARD_SWEEP_INTERVAL", "24h"),

		// Rewards
		PointsExpiryMonths:    getEnvAsInt("POINTS_EXPIRY_MONTHS", 3),
		ReferralPoints:        int64(getEnvAsInt("REFERRAL_POINTS", 10000)),
		ReferralCouponAmount:  int64(getEnvAsInt("REFERRAL_COUPON_DISCOUNT", 10000)),
		PointsBalanceCacheTTL: getEnvAsDuration("POINTS_BALANCE_CACHE_TTL", "30s"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, fall back to the default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

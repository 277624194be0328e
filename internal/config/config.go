package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"cineledger/internal/cache"
	"cineledger/internal/database"
	"cineledger/internal/external"
	"cineledger/internal/messaging"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration
	JWTSecret      string

	Booking BookingConfig
	Reaper  ReaperConfig

	Database      database.Config
	NATS          messaging.Config
	Redis         cache.Config
	Elasticsearch ElasticsearchConfig
	Payment       external.PaymentConfig
}

// BookingConfig holds the business tunables of the seat/booking core
type BookingConfig struct {
	HoldDuration          time.Duration
	CancellationCutoff    time.Duration
	PointsEarnRatePercent int64
}

// ReaperConfig drives the background expiry sweep
type ReaperConfig struct {
	Interval              time.Duration
	PendingBookingTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,
		JWTSecret:      getEnv("JWT_SECRET", "change-me"),

		Booking: BookingConfig{
			HoldDuration:          getEnvDuration("HOLD_DURATION", 10*time.Minute),
			CancellationCutoff:    getEnvDuration("CANCELLATION_CUTOFF", time.Hour),
			PointsEarnRatePercent: int64(getEnvInt("POINTS_EARN_RATE_PERCENT", 10)),
		},

		Reaper: ReaperConfig{
			Interval:              getEnvDuration("REAPER_INTERVAL", 60*time.Second),
			PendingBookingTimeout: getEnvDuration("PENDING_BOOKING_TIMEOUT", 30*time.Minute),
		},

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "cineledger"),
			Password:           getEnv("DB_PASSWORD", "cineledger"),
			DBName:             getEnv("DB_NAME", "cineledger"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "cineledger"),
			ClientID:  getEnv("NATS_CLIENT_ID", "cineledger-api"),
		},

		Redis: cache.Config{
			Addr:       getEnv("REDIS_ADDR", "localhost:6379"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         getEnvInt("REDIS_DB", 0),
			SeatMapTTL: getEnvDuration("SEAT_MAP_CACHE_TTL", 5*time.Second),
		},

		Elasticsearch: loadElasticsearchConfig(),

		Payment: external.PaymentConfig{
			BaseURL:         getEnv("PAYMENT_GATEWAY_URL", "http://localhost:9090"),
			MerchantSlug:    getEnv("PAYMENT_MERCHANT_SLUG", ""),
			Secret:          getEnv("PAYMENT_SECRET", ""),
			ReturnURL:       getEnv("PAYMENT_RETURN_URL", "http://localhost:8081/api/payments/callback"),
			Currency:        getEnv("PAYMENT_CURRENCY", "VND"),
			Timeout:         time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 15)) * time.Second,
			BreakerFailures: uint32(getEnvInt("PAYMENT_BREAKER_FAILURES", 5)),
			BreakerOpenFor:  getEnvDuration("PAYMENT_BREAKER_OPEN_FOR", 30*time.Second),
		},
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

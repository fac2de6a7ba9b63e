// Package config loads service configuration from the environment. A local
// .env file is honored in development; real deployments inject variables
// directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Service  ServiceConfig
	Database DatabaseConfig
	NATS     NATSConfig
	Server   ServerConfig
	Payment  PaymentConfig
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
	LogLevel    string
}

// DatabaseConfig holds connection pool settings.
type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxIdleTime time.Duration
}

// NATSConfig holds the notification bus settings. An empty URL disables
// event publishing; notification rows are still written.
type NATSConfig struct {
	URL string
}

// ServerConfig holds the health listener settings.
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// PaymentConfig tunes the settlement stub.
type PaymentConfig struct {
	SuccessRate float64
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	// Missing .env is fine; env vars may come from the deployment.
	_ = godotenv.Load()

	cfg := &Config{
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "be-vm-acceptance"),
			Version:     getEnv("SERVICE_VERSION", "dev"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", ""),
			Database:    getEnv("DB_NAME", "vm_acceptance"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			MaxConns:    int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns:    int32(getEnvInt("DB_MIN_CONNS", 2)),
			MaxConnLife: getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxIdleTime: getEnvDuration("DB_MAX_IDLE_TIME", 30*time.Minute),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Server: ServerConfig{
			Port:            getEnvInt("PORT", 8086),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Payment: PaymentConfig{
			SuccessRate: getEnvFloat("PAYMENT_SUCCESS_RATE", 0.95),
			MinDelay:    getEnvDuration("PAYMENT_MIN_DELAY", 100*time.Millisecond),
			MaxDelay:    getEnvDuration("PAYMENT_MAX_DELAY", 500*time.Millisecond),
		},
	}

	if cfg.Database.Host == "" {
		return nil, fmt.Errorf("DB_HOST must not be empty")
	}
	if cfg.Payment.SuccessRate < 0 || cfg.Payment.SuccessRate > 1 {
		return nil, fmt.Errorf("PAYMENT_SUCCESS_RATE must be between 0 and 1")
	}
	if cfg.Payment.MaxDelay < cfg.Payment.MinDelay {
		return nil, fmt.Errorf("PAYMENT_MAX_DELAY must be >= PAYMENT_MIN_DELAY")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

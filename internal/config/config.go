package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; AMQP_URL and DATABASE_URL are required.
type Config struct {
	// Broker
	AMQPURL      string
	QueueName    string
	Concurrency  int
	MaxAttempts  int
	RetryBackoff time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Delivery sink
	RedisURL       string
	PushRatePerSec int

	// Ops HTTP server (health + metrics)
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	amqpURL := os.Getenv("AMQP_URL")
	if amqpURL == "" {
		return nil, fmt.Errorf("AMQP_URL is required")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		AMQPURL:      amqpURL,
		QueueName:    getEnv("QUEUE_NAME", "notifications"),
		Concurrency:  getInt("WORKER_CONCURRENCY", 10),
		MaxAttempts:  getInt("MAX_DELIVERY_ATTEMPTS", 5),
		RetryBackoff: getDuration("RETRY_BACKOFF", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		PushRatePerSec: getInt("PUSH_RATE_PER_SEC", 500),

		HTTPPort:        getEnv("HTTP_PORT", "8081"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

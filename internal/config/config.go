package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server          ServerConfig
	Processing      ProcessingConfig
	DatabaseService DatabaseServiceConfig
	Redis           RedisConfig
	Kafka           KafkaConfig
	Stripe          StripeConfig
	Auth            AuthConfig
	QR              QRConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// ProcessingConfig selects synchronous vs. asynchronous payment completion.
// In sync mode a submit call blocks until the payment reaches a terminal
// state; in async mode completion happens on a background task.
type ProcessingConfig struct {
	Sync bool
}

// DatabaseServiceConfig points at the external database service, the system
// of record for payments, intents and charges.
type DatabaseServiceConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryLimit int
	RetryWait  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers  []string
	Topics   TopicConfig
	Enabled  bool
	MockMode bool
}

type TopicConfig struct {
	PaymentEvents   string
	PaymentSuccess  string
	PaymentFailed   string
	PaymentRefunded string
}

type StripeConfig struct {
	MockMode bool
}

type AuthConfig struct {
	Enabled bool
	Issuer  string
}

type QRConfig struct {
	Secret string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Processing: ProcessingConfig{
			Sync: getEnvBool("PROCESS_PAYMENTS_SYNC", true),
		},
		DatabaseService: DatabaseServiceConfig{
			BaseURL:    getEnv("DATABASE_SERVICE_URL", "http://localhost:9000"),
			Timeout:    time.Duration(getEnvInt("DATABASE_SERVICE_TIMEOUT_SECONDS", 5)) * time.Second,
			RetryLimit: getEnvInt("DATABASE_SERVICE_RETRY_LIMIT", 3),
			RetryWait:  time.Duration(getEnvInt("DATABASE_SERVICE_RETRY_WAIT_MS", 200)) * time.Millisecond,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers:  []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Enabled:  getEnvBool("KAFKA_ENABLED", false),
			MockMode: getEnvBool("KAFKA_MOCK_MODE", false),
			Topics: TopicConfig{
				PaymentEvents:   getEnv("KAFKA_TOPIC_EVENTS", "payment-events"),
				PaymentSuccess:  getEnv("KAFKA_TOPIC_SUCCESS", "payment-success"),
				PaymentFailed:   getEnv("KAFKA_TOPIC_FAILED", "payment-failed"),
				PaymentRefunded: getEnv("KAFKA_TOPIC_REFUNDED", "payment-refunded"),
			},
		},
		Stripe: StripeConfig{
			MockMode: getEnvBool("STRIPE_MOCK_MODE", true),
		},
		Auth: AuthConfig{
			Enabled: getEnvBool("AUTH_ENABLED", false),
			Issuer:  getEnv("OIDC_ISSUER", ""),
		},
		QR: QRConfig{
			Secret: getEnv("QR_SECRET", "payment-receipt-secret"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const minJWTSecretLength = 32

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the process configuration read from the environment.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// DatabaseURL empty selects the in-memory stores seeded with demo data.
	DatabaseURL string

	JWTSecret    string
	JWTAccessTTL time.Duration

	KafkaBrokers  []string
	KafkaTopic    string
	ConsumerGroup string

	RedisURL       string
	IdempotencyTTL time.Duration

	UserServiceURL     string
	UserServiceTimeout time.Duration

	ForwardOnlyTransitions bool

	// Circuit breakers around Kafka and the user service.
	BreakerMinRequests int
	BreakerOpenTimeout time.Duration

	SMTP SMTPConfig

	LogLevel  string
	LogFormat string
}

type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
}

// Load reads the environment. JWT_SECRET is required unless requireSecret is
// false, which only the notifier uses.
func Load(requireSecret bool) (Config, error) {
	var errs []error

	cfg := Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "bookstore-orders"),
		ConsumerGroup:  getEnv("KAFKA_CONSUMER_GROUP", "order-email-notifier"),
		RedisURL:       os.Getenv("REDIS_URL"),
		UserServiceURL: os.Getenv("USER_SERVICE_URL"),
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnv("SMTP_PORT", "1025"),
			From:     getEnv("SMTP_FROM", "noreply@bookstore.com"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.JWTAccessTTL, err = parseDuration("JWT_ACCESS_TTL", 15*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.IdempotencyTTL, err = parseDuration("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.UserServiceTimeout, err = parseDuration("USER_SERVICE_TIMEOUT", 3*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.BreakerMinRequests, err = parseInt("BREAKER_MIN_REQUESTS", 3); err != nil {
		errs = append(errs, err)
	}
	if cfg.BreakerOpenTimeout, err = parseDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.ForwardOnlyTransitions, err = parseBool("ORDER_FORWARD_ONLY_TRANSITIONS", false); err != nil {
		errs = append(errs, err)
	}

	if requireSecret {
		switch {
		case cfg.JWTSecret == "":
			errs = append(errs, fmt.Errorf("%w: JWT_SECRET environment variable is required", ErrInvalidConfig))
		case len(cfg.JWTSecret) < minJWTSecretLength:
			errs = append(errs, fmt.Errorf("%w: JWT_SECRET must be at least %d characters long", ErrInvalidConfig, minJWTSecretLength))
		}
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%w: LOG_LEVEL: %w", ErrInvalidConfig, err))
	}

	return cfg, errors.Join(errs...)
}

// KafkaEnabled reports whether events should be published.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the standard logrus
// logger.
func (c Config) ConfigureLogging() {
	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if level, err := log.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultValue, fmt.Errorf("%w: %s must be a positive duration, got %q", ErrInvalidConfig, key, raw)
	}
	return d, nil
}

func parseInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return defaultValue, fmt.Errorf("%w: %s must be a positive integer, got %q", ErrInvalidConfig, key, raw)
	}
	return n, nil
}

func parseBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("%w: %s must be a boolean, got %q", ErrInvalidConfig, key, raw)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

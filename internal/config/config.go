package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	StoreDriver string
	MySQLDSN    string
	RedisAddr   string // empty disables the approval guard

	KafkaBrokers []string // empty publishes events to the log only
	KafkaTopic   string

	JWTSecret string

	EventWorkers   int
	EventQueueSize int

	CartRetryLimit   int
	ApprovalGuardTTL time.Duration

	StaleCartTTL      time.Duration // zero disables the sweeper
	StaleCartInterval time.Duration

	RateLimitRPS float64

	LogLevel  zerolog.Level
	LogFormat string
}

// Load reads the configuration from the environment. Every malformed value is
// reported, not only the first.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:    getEnv("GRPC_ADDR", ":50051"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreMySQL)),
		MySQLDSN:    getEnv("MYSQL_DSN", "root:password@tcp(localhost:3306)/pizzeria?parseTime=true"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaTopic:  getEnv("KAFKA_TOPIC", "order-events"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	cfg.EventWorkers = getInt("EVENT_WORKERS", 10, &errs)
	cfg.EventQueueSize = getInt("EVENT_QUEUE_SIZE", 10000, &errs)
	cfg.CartRetryLimit = getInt("CART_RETRY_LIMIT", 3, &errs)
	cfg.ApprovalGuardTTL = getDuration("APPROVAL_GUARD_TTL", 30*time.Second, &errs)
	cfg.StaleCartTTL = getDuration("STALE_CART_TTL", 0, &errs)
	cfg.StaleCartInterval = getDuration("STALE_CART_INTERVAL", 10*time.Minute, &errs)
	cfg.RateLimitRPS = getFloat("RATE_LIMIT_RPS", 20, &errs)

	level, err := zerolog.ParseLevel(strings.ToLower(getEnv("LOG_LEVEL", "info")))
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	cfg.LogLevel = level

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	switch c.StoreDriver {
	case StoreMySQL:
		if c.MySQLDSN == "" {
			errs = append(errs, errors.New("MYSQL_DSN is required for the mysql store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMySQL, StoreMemory, c.StoreDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.EventWorkers <= 0 {
		errs = append(errs, errors.New("EVENT_WORKERS must be positive"))
	}
	if c.EventQueueSize <= 0 {
		errs = append(errs, errors.New("EVENT_QUEUE_SIZE must be positive"))
	}
	if c.CartRetryLimit <= 0 {
		errs = append(errs, errors.New("CART_RETRY_LIMIT must be positive"))
	}
	if c.StaleCartTTL < 0 {
		errs = append(errs, errors.New("STALE_CART_TTL cannot be negative"))
	}
	if c.StaleCartTTL > 0 && c.StaleCartInterval <= 0 {
		errs = append(errs, errors.New("STALE_CART_INTERVAL must be positive when the sweeper is enabled"))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS cannot be negative"))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	return errs
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64, errs *[]error) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

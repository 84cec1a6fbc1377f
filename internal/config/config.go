package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type Config struct {
	ServiceName string
	Env         string
	LogLevel    string
	LogFile     string

	HTTPAddr string
	GRPCAddr string

	StoreDriver string
	StoreDSN    string

	// RedisAddr selects the Redis checkout guard. Empty keeps the in-process guard.
	RedisAddr        string
	CheckoutGuardTTL time.Duration

	// RabbitURL enables the event relay. Empty keeps events in-process.
	RabbitURL      string
	RabbitExchange string

	ReserveMaxAttempts int
	SeedCatalog        bool
	AllowedOrigins     []string
	ShutdownTimeout    time.Duration
}

// Load reads the environment after applying an optional .env file from the working directory.
// Variables already set in the environment win over .env entries.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	p := parser{}
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "minishop-checkout"),
		Env:         getEnv("ENV", "dev"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     os.Getenv("LOG_FILE"),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr: getEnv("GRPC_ADDR", ":9090"),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
		StoreDSN:    os.Getenv("STORE_DSN"),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		CheckoutGuardTTL: p.duration("CHECKOUT_GUARD_TTL", 10*time.Second),

		RabbitURL:      os.Getenv("RABBITMQ_URL"),
		RabbitExchange: getEnv("RABBITMQ_EXCHANGE", "minishop.events"),

		ReserveMaxAttempts: p.integer("RESERVE_MAX_ATTEMPTS", 3),
		SeedCatalog:        p.boolean("SEED_CATALOG", true),
		AllowedOrigins:     splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		ShutdownTimeout:    p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.StoreDSN == "" {
			c.StoreDSN = "minishop.db"
		}
	case DriverMySQL:
		if c.StoreDSN == "" {
			return errors.New("config: STORE_DSN is required for mysql")
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.ReserveMaxAttempts < 1 {
		return fmt.Errorf("config: RESERVE_MAX_ATTEMPTS must be at least 1, got %d", c.ReserveMaxAttempts)
	}
	if c.CheckoutGuardTTL <= 0 {
		return errors.New("config: CHECKOUT_GUARD_TTL must be positive")
	}
	return nil
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parser keeps the first conversion error so FromEnv can report it once.
type parser struct{ err error }

func (p *parser) fail(k, v string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config: invalid %s=%q: %w", k, v, err)
	}
}

func (p *parser) duration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(k, v, err)
		return def
	}
	return d
}

func (p *parser) integer(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(k, v, err)
		return def
	}
	return n
}

func (p *parser) boolean(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(k, v, err)
		return def
	}
	return b
}

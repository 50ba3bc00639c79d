// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. In development a
local .env file is loaded first via 'joho/godotenv' when present.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (stores, brokers) via constructors.
  - Fail Fast: [Config.Validate] rejects unsafe combinations before any I/O.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// # Enumerations

const (
	// StoreDriverPostgres selects the pgx-backed credential store.
	StoreDriverPostgres = "postgres"
	// StoreDriverSQLite selects the single-file SQLite credential store.
	StoreDriverSQLite = "sqlite"

	// NotifyBackendLog writes reset codes to the structured log (development only).
	NotifyBackendLog = "log"
	// NotifyBackendRabbitMQ publishes reset notices to a RabbitMQ queue.
	NotifyBackendRabbitMQ = "rabbitmq"
	// NotifyBackendPubSub publishes reset notices to a Google Cloud Pub/Sub topic.
	NotifyBackendPubSub = "pubsub"
)

// minSecretLength mirrors sec.MinSecretLength without importing the crypto package.
const minSecretLength = 32

// # Configuration Schema

// Config holds all runtime configuration for the ecgscan API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Credential store
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH"  envDefault:"./data/ecgscan.db"`

	// Key-Value store (Redis). Optional: enables reset attempt throttling.
	RedisURL string `env:"REDIS_URL"`

	// Session tokens
	JWTSecret string        `env:"JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL"  envDefault:"720h"`

	// Password reset
	ResetCodeTTL       time.Duration `env:"RESET_CODE_TTL"       envDefault:"15m"`
	ResetDiscloseName  bool          `env:"RESET_DISCLOSE_NAME"  envDefault:"false"`
	ResetAttemptLimit  int           `env:"RESET_ATTEMPT_LIMIT"  envDefault:"10"`
	ResetAttemptWindow time.Duration `env:"RESET_ATTEMPT_WINDOW" envDefault:"15m"`

	// Admin bootstrap
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	AdminName     string `env:"ADMIN_NAME" envDefault:"Administrator"`

	// Notification sink
	NotifyBackend   string `env:"NOTIFY_BACKEND"    envDefault:"log"`
	RabbitMQURL     string `env:"RABBITMQ_URL"`
	PubSubProjectID string `env:"PUBSUB_PROJECT_ID"`
	ResetTopic      string `env:"RESET_TOPIC"       envDefault:"password-reset"`

	// Cross-Origin Resource Sharing
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and validates it.
func Load() (*Config, error) {

	// A local .env file is a development convenience only.
	if strings.EqualFold(os.Getenv("ENVIRONMENT"), "development") || os.Getenv("ENVIRONMENT") == "" {
		if _, err := os.Stat(".env"); err == nil {
			if err := godotenv.Load(); err != nil {
				return nil, fmt.Errorf("config: failed to load .env: %w", err)
			}
		}
	}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate enforces cross-field rules that struct tags cannot express.
func (c *Config) Validate() error {
	var problems []error

	if len(c.JWTSecret) < minSecretLength {
		problems = append(problems, fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength))
	}

	if c.TokenTTL <= 0 {
		problems = append(problems, errors.New("TOKEN_TTL must be positive"))
	}

	if c.ResetCodeTTL <= 0 {
		problems = append(problems, errors.New("RESET_CODE_TTL must be positive"))
	}

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			problems = append(problems, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	case StoreDriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			problems = append(problems, errors.New("SQLITE_PATH is required when STORE_DRIVER=sqlite"))
		}
	default:
		problems = append(problems, fmt.Errorf("STORE_DRIVER %q is not supported", c.StoreDriver))
	}

	switch c.NotifyBackend {
	case NotifyBackendLog:
		if c.IsProduction() {
			problems = append(problems, errors.New("NOTIFY_BACKEND=log is not allowed in production"))
		}
	case NotifyBackendRabbitMQ:
		if strings.TrimSpace(c.RabbitMQURL) == "" {
			problems = append(problems, errors.New("RABBITMQ_URL is required when NOTIFY_BACKEND=rabbitmq"))
		}
	case NotifyBackendPubSub:
		if strings.TrimSpace(c.PubSubProjectID) == "" {
			problems = append(problems, errors.New("PUBSUB_PROJECT_ID is required when NOTIFY_BACKEND=pubsub"))
		}
	default:
		problems = append(problems, fmt.Errorf("NOTIFY_BACKEND %q is not supported", c.NotifyBackend))
	}

	if c.RedisURL != "" && (c.ResetAttemptLimit <= 0 || c.ResetAttemptWindow <= 0) {
		problems = append(problems, errors.New("RESET_ATTEMPT_LIMIT and RESET_ATTEMPT_WINDOW must be positive"))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(problems...))
	}

	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ThrottlingEnabled reports whether reset attempts are counted in Redis.
func (c *Config) ThrottlingEnabled() bool {
	return strings.TrimSpace(c.RedisURL) != ""
}

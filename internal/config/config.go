package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvironmentDev        = "dev"
	EnvironmentProduction = "production"
)

type Config struct {
	Environment    string `env:"ENVIRONMENT" envDefault:"dev"`
	ServiceName    string `env:"SERVICE_NAME" envDefault:"campaign-api"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
	HTTPAddr       string `env:"HTTP_ADDR" envDefault:":8080"`

	DatabaseDriver       string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL          string `env:"DATABASE_URL" envDefault:"file:campaigns.db"`
	DatabaseMaxOpenConns int    `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"10"`

	CaptureSinkEnabled bool   `env:"CAPTURE_SINK_ENABLED" envDefault:"false"`
	SentryDSN          string `env:"SENTRY_DSN"`
	AMQPURL            string `env:"AMQP_URL"`
	ErrorEventQueue    string `env:"ERROR_EVENT_QUEUE" envDefault:"error_events"`

	StructuredLoggingEnabled bool `env:"STRUCTURED_LOGGING_ENABLED" envDefault:"true"`

	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Options is the subset of configuration injected into the observability
// pipeline at process start.
type Options struct {
	Environment              string
	ServiceName              string
	ServiceVersion           string
	CaptureSinkEnabled       bool
	StructuredLoggingEnabled bool
}

// IsProduction reports whether redaction rules for production apply.
func (o Options) IsProduction() bool {
	return o.Environment == EnvironmentProduction
}

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Environment {
	case EnvironmentDev, EnvironmentProduction:
	default:
		return fmt.Errorf("ENVIRONMENT must be %q or %q, got %q", EnvironmentDev, EnvironmentProduction, c.Environment)
	}
	switch c.DatabaseDriver {
	case "postgres", "pgx", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres, pgx or sqlite, got %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.DatabaseMaxOpenConns < 1 {
		return errors.New("DATABASE_MAX_OPEN_CONNS must be >= 1")
	}
	if c.ServiceName == "" {
		return errors.New("SERVICE_NAME is required")
	}
	return nil
}

func (c *Config) Options() Options {
	return Options{
		Environment:              c.Environment,
		ServiceName:              c.ServiceName,
		ServiceVersion:           c.ServiceVersion,
		CaptureSinkEnabled:       c.CaptureSinkEnabled,
		StructuredLoggingEnabled: c.StructuredLoggingEnabled,
	}
}

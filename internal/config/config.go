// Package config loads service configuration from defaults, an optional YAML
// file and RIDEDECK_ environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ridedeck/ridedeck/internal/availability"
	"github.com/ridedeck/ridedeck/internal/availability/zwiftinsider"
	"github.com/ridedeck/ridedeck/internal/database"
	"github.com/ridedeck/ridedeck/internal/readiness/garmin"
	"github.com/ridedeck/ridedeck/internal/ride/zwift"
)

// Configuration errors.
var (
	ErrMissingPort       = errors.New("server.port must not be empty")
	ErrInsecureJWTSecret = errors.New("auth.jwt_signing_key must be set outside development")
	ErrInvalidTTL        = errors.New("schedule.ttl must be positive")
)

// DevSigningKey is the JWT key used when none is configured in development.
const DevSigningKey = "local-dev-signing-key-change-in-production"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  database.Config `koanf:"database"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Sentry    SentryConfig    `koanf:"sentry"`
	Auth      AuthConfig      `koanf:"auth"`
	Zwift     ZwiftConfig     `koanf:"zwift"`
	Garmin    GarminConfig    `koanf:"garmin"`
	Schedule  ScheduleConfig  `koanf:"schedule"`
	PubSub    PubSubConfig    `koanf:"pubsub"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            string        `koanf:"port"`
	Environment     string        `koanf:"env"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`

	// SampleRatio is the fraction of root traces exported.
	SampleRatio float64 `koanf:"sample_ratio"`

	// Insecure talks plaintext gRPC to the collector.
	Insecure bool `koanf:"insecure"`

	ExportInterval time.Duration `koanf:"export_interval"`
}

// SentryConfig configures error reporting. An empty DSN disables it.
type SentryConfig struct {
	DSN              string  `koanf:"dsn"`
	TracesSampleRate float64 `koanf:"traces_sample_rate"`
}

// AuthConfig configures API bearer tokens.
type AuthConfig struct {
	JWTSigningKey string `koanf:"jwt_signing_key"`
	Issuer        string `koanf:"issuer"`
	Audience      string `koanf:"audience"`
}

// ZwiftConfig configures the cycling platform client.
type ZwiftConfig struct {
	BaseURL       string `koanf:"base_url"`
	TokenURL      string `koanf:"token_url"`
	ClientID      string `koanf:"client_id"`
	ActivityLimit int    `koanf:"activity_limit"`
}

// GarminConfig configures the wearable metrics client and its OAuth flow.
type GarminConfig struct {
	BaseURL string             `koanf:"base_url"`
	Paths   garmin.MetricPaths `koanf:"paths"`
	Fields  garmin.MetricPaths `koanf:"fields"`
	OAuth   garmin.AuthConfig  `koanf:"oauth"`
}

// ScheduleConfig configures the world schedule source and cache warm-up.
type ScheduleConfig struct {
	BaseURL string        `koanf:"base_url"`
	TTL     time.Duration `koanf:"ttl"`

	// Timezones whose current and next month the worker keeps warm.
	Timezones []string `koanf:"timezones"`

	// Concurrency bounds parallel month fetches during warm-up.
	Concurrency int `koanf:"concurrency"`
}

// PubSubConfig configures the worker subscription.
type PubSubConfig struct {
	ProjectID    string `koanf:"project_id"`
	Subscription string `koanf:"subscription"`
	Topic        string `koanf:"topic"`
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Environment:     "development",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: database.DefaultConfig(),
		Telemetry: TelemetryConfig{
			OTLPEndpoint:   "localhost:4317",
			SampleRatio:    1,
			Insecure:       true,
			ExportInterval: 15 * time.Second,
		},
		Sentry: SentryConfig{
			TracesSampleRate: 0.1,
		},
		Auth: AuthConfig{
			Issuer:   "ridedeck",
			Audience: "ridedeck-app",
		},
		Zwift: ZwiftConfig{
			BaseURL:       zwift.DefaultBaseURL,
			TokenURL:      zwift.DefaultTokenURL,
			ClientID:      zwift.DefaultClientID,
			ActivityLimit: zwift.DefaultActivityLimit,
		},
		Schedule: ScheduleConfig{
			BaseURL:     zwiftinsider.DefaultBaseURL,
			TTL:         availability.DefaultScheduleTTL,
			Timezones:   []string{availability.DefaultTimezone},
			Concurrency: 3,
		},
		PubSub: PubSubConfig{
			Subscription: "ridedeck-worker",
			Topic:        "ridedeck-jobs",
		},
	}
}

// IsDevelopment reports whether the service runs in a local environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "" || c.Server.Environment == "development" || c.Server.Environment == "test"
}

// Validate checks the settings that would otherwise fail at runtime.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return ErrMissingPort
	}
	if c.Schedule.TTL <= 0 {
		return ErrInvalidTTL
	}
	if !c.IsDevelopment() && (c.Auth.JWTSigningKey == "" || c.Auth.JWTSigningKey == DevSigningKey) {
		return ErrInsecureJWTSecret
	}
	if c.Schedule.Concurrency <= 0 {
		return fmt.Errorf("schedule.concurrency must be positive, got %d", c.Schedule.Concurrency)
	}
	return nil
}

// SigningKey returns the configured JWT key, or the development key.
func (c *Config) SigningKey() string {
	if c.Auth.JWTSigningKey == "" {
		return DevSigningKey
	}
	return c.Auth.JWTSigningKey
}

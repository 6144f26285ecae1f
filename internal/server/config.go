// Package server provides configuration helpers that define runtime defaults
// and validation for the chat relay service.
package server

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the server configuration settings including security controls
// and liveness timing.
type Config struct {
	Port              string        `env:"SERVER_PORT" envDefault:":8080"`
	JWTSecret         string        `env:"JWT_SECRET"`
	DatabaseURL       string        `env:"DATABASE_URL"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	MaxMessageSize    int64         `env:"MAX_MESSAGE_SIZE" envDefault:"4096"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`
	PongTimeout       time.Duration `env:"PONG_TIMEOUT" envDefault:"60s"`
	StoreTimeout      time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// NewConfig returns a Config populated with default values for all settings
// and a permissive localhost origin list.
func NewConfig() Config {
	cfg := Config{
		Port:              ":8080",
		MaxMessageSize:    4096,
		HeartbeatInterval: 30 * time.Second,
		PongTimeout:       60 * time.Second,
		StoreTimeout:      5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
	return cfg.sanitize()
}

// LoadConfig reads configuration from environment variables, falling back to
// defaults for anything unset. JWT_SECRET must be provided.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg.sanitize(), nil
}

func (c Config) sanitize() Config {
	if c.Port == "" {
		c.Port = ":8080"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"http://localhost:8080"}
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	// The read deadline must outlive at least one probe interval or healthy
	// connections get reaped between pings.
	if c.PongTimeout <= c.HeartbeatInterval {
		c.PongTimeout = 2 * c.HeartbeatInterval
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

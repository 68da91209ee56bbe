package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures server level configuration so main stays lean. Values come
// from the environment; defaults suit local development only.
type Config struct {
	Addr        string `env:"CASTELLAN_ADDR" envDefault:":8080"`
	LogLevel    string `env:"CASTELLAN_LOG_LEVEL" envDefault:"info"`
	Environment string `env:"CASTELLAN_ENVIRONMENT" envDefault:"development"`

	// JWTSigningKey signs issued user auth tokens. Must be overridden in
	// production.
	JWTSigningKey string        `env:"CASTELLAN_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	TokenTTL      time.Duration `env:"CASTELLAN_TOKEN_TTL" envDefault:"1h"`
	Issuer        string        `env:"CASTELLAN_ISSUER" envDefault:"castellan"`

	// AuthSessionTTL is the inactivity window of an unresolved negotiation;
	// SweepInterval is how often expired negotiations are collected.
	AuthSessionTTL time.Duration `env:"CASTELLAN_AUTH_SESSION_TTL" envDefault:"5m"`
	SweepInterval  time.Duration `env:"CASTELLAN_SWEEP_INTERVAL" envDefault:"1m"`

	// AdminPassword, when set, seeds the admin account at boot.
	AdminPassword string `env:"CASTELLAN_ADMIN_PASSWORD"`

	ShutdownTimeout time.Duration `env:"CASTELLAN_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

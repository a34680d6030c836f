// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/invoiceops/reconcile-go/internal/aggregate"
)

// Mode determines whether the worker uses the in-memory CRM stub or the
// real Boond connector.
type Mode string

const (
	ModeStub       Mode = "stub"
	ModeProduction Mode = "production"
)

// Config holds all application configuration.
type Config struct {
	Mode Mode

	// Boond CRM connector settings.
	BoondEndpoint string
	BoondToken    string

	// Engine settings.
	Concurrency   int
	BreakerRate   float64
	Thresholds    aggregate.Thresholds
	RetryAttempts int
	RetryInterval time.Duration
	LookupBudget  int

	// Temporal settings.
	TemporalHostPort  string
	TemporalNamespace string

	// API server settings.
	APIPort      string
	CORSOrigins  []string
	OIDCIssuer   string
	OIDCAudience string

	// Review settings.
	ReviewTimeout time.Duration

	// Observability settings.
	LogLevel    string
	OTelEnabled bool
}

// OIDCEnabled reports whether API authentication should be enforced.
func (c Config) OIDCEnabled() bool {
	return c.OIDCIssuer != ""
}

// LoadFromEnv reads configuration from environment variables with sensible defaults.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Mode:          Mode(envOr("RECON_MODE", "stub")),
		BoondEndpoint: os.Getenv("RECON_BOOND_ENDPOINT"),
		BoondToken:    os.Getenv("RECON_BOOND_TOKEN"),
		Concurrency:   envIntOr("RECON_CONCURRENCY", 8),
		BreakerRate:   envFloatOr("RECON_BREAKER_RATE", 0.20),
		Thresholds: aggregate.Thresholds{
			Auto:   envFloatOr("RECON_THRESHOLD_AUTO", 1.0),
			Review: envFloatOr("RECON_THRESHOLD_REVIEW", 0.85),
			Reject: envFloatOr("RECON_THRESHOLD_REJECT", 0.70),
		},
		RetryAttempts:     envIntOr("RECON_RETRY_ATTEMPTS", 3),
		RetryInterval:     envDurationOr("RECON_RETRY_INTERVAL", 2*time.Second),
		LookupBudget:      envIntOr("RECON_LOOKUP_BUDGET", 1000),
		TemporalHostPort:  envOr("TEMPORAL_HOST_PORT", "localhost:7233"),
		TemporalNamespace: envOr("TEMPORAL_NAMESPACE", "default"),
		APIPort:           envOr("RECON_API_PORT", "8080"),
		CORSOrigins:       parseCORSOrigins(os.Getenv("RECON_CORS_ORIGINS")),
		OIDCIssuer:        os.Getenv("RECON_OIDC_ISSUER"),
		OIDCAudience:      envOr("RECON_OIDC_AUDIENCE", "reconcile-api"),
		ReviewTimeout:     envDurationOr("RECON_REVIEW_TIMEOUT", 72*time.Hour),
		LogLevel:          envOr("RECON_LOG_LEVEL", "info"),
		OTelEnabled:       envBoolOr("RECON_OTEL_ENABLED", false),
	}

	if cfg.Mode != ModeStub && cfg.Mode != ModeProduction {
		return Config{}, fmt.Errorf("config: invalid RECON_MODE %q (must be stub or production)", cfg.Mode)
	}

	if cfg.Mode == ModeProduction {
		if cfg.BoondEndpoint == "" {
			return Config{}, fmt.Errorf("config: RECON_BOOND_ENDPOINT required in production mode")
		}
		if cfg.BoondToken == "" {
			return Config{}, fmt.Errorf("config: RECON_BOOND_TOKEN required in production mode")
		}
	}

	if err := cfg.Thresholds.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.BreakerRate <= 0 || cfg.BreakerRate >= 1 {
		return Config{}, fmt.Errorf("config: RECON_BREAKER_RATE must be in (0,1), got %v", cfg.BreakerRate)
	}
	if cfg.RetryAttempts < 1 {
		return Config{}, fmt.Errorf("config: RECON_RETRY_ATTEMPTS must be at least 1, got %d", cfg.RetryAttempts)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func parseCORSOrigins(raw string) []string {
	if raw == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(o); t != "" {
			origins = append(origins, t)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

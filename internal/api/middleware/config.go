// Package middleware provides HTTP middleware components for the worker API.
package middleware

import (
	"github.com/biomarker-io/worker/internal/config"
)

// Config holds rate limiter configuration.
//
// Burst capacity allows temporary bursts above the sustained rate. If Burst
// is 0, it is computed automatically as 2 × RPS.
type Config struct {
	RPS   int // Default: 100
	Burst int // Default: 0 (computed as 2 × RPS)
}

// LoadConfig loads middleware config from environment variables with fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		RPS:   config.GetEnvInt("WORKER_RATE_LIMIT_RPS", defaultRPS),
		Burst: config.GetEnvInt("WORKER_RATE_LIMIT_BURST", 0),
	}
}

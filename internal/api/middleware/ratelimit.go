// Package middleware provides HTTP middleware components for the worker API.
package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

const (
	burstCapacityMultiplier int = 2
	defaultRPS              int = 100
)

// RateLimiter provides rate limiting for incoming requests.
//
// Implementations may use an in-memory token bucket (single-node
// deployment) or a distributed store like Redis (multi-node deployment).
// The interface enables switching without touching the HTTP layer.
type RateLimiter interface {
	// Allow reports whether a request should proceed.
	Allow() bool
}

// InMemoryRateLimiter implements RateLimiter as a single global token
// bucket backed by golang.org/x/time/rate.
//
// Suitable for single-process deployments; the worker runs one HTTP
// surface per process, so there is no per-tenant dimension to shard the
// limiter by.
type InMemoryRateLimiter struct {
	limiter *rate.Limiter
}

// NewInMemoryRateLimiter creates a rate limiter enforcing cfg.RPS with a
// burst capacity of cfg.Burst (or 2 × RPS if unset).
func NewInMemoryRateLimiter(cfg *Config) *InMemoryRateLimiter {
	burst := computeBurstCapacity(cfg.RPS, cfg.Burst)

	return &InMemoryRateLimiter{limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst)}
}

// computeBurstCapacity computes the burst capacity based on the rate and optional override.
func computeBurstCapacity(rps, burstOverride int) int {
	if burstOverride > 0 {
		return burstOverride
	}

	return rps * burstCapacityMultiplier
}

// Allow implements RateLimiter.
func (rl *InMemoryRateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// RateLimit returns a middleware that enforces rate limits on incoming
// requests, responding 429 with an RFC 7807 problem body when exceeded.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				correlationID := GetCorrelationID(r.Context())
				detail := "Rate limit exceeded. Please retry after some time."

				if err := writeRateLimitProblem(w, r, detail, correlationID); err != nil {
					logger.Error("failed to write rate limit error response",
						slog.String("correlation_id", correlationID),
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)

					http.Error(w, detail, http.StatusTooManyRequests)
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitProblem is a minimal RFC 7807 problem body, kept local to this
// file so the middleware package doesn't depend on the api package's
// richer ProblemDetail type.
type rateLimitProblem struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail,omitempty"`
	Instance      string `json:"instance,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func writeRateLimitProblem(w http.ResponseWriter, r *http.Request, detail, correlationID string) error {
	problem := rateLimitProblem{
		Type:          fmt.Sprintf("https://biomarker.io/problems/%d", http.StatusTooManyRequests),
		Title:         "Too Many Requests",
		Status:        http.StatusTooManyRequests,
		Detail:        detail,
		Instance:      r.URL.Path,
		CorrelationID: correlationID,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)

	return json.NewEncoder(w).Encode(problem)
}

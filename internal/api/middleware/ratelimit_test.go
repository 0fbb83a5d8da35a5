package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const contentTypeProblemJSON = "application/problem+json"

func TestRateLimiter_LimitEnforced(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{RPS: 10, Burst: 10})

	successCount := 0

	for i := 0; i < 11; i++ {
		if rl.Allow() {
			successCount++
		}
	}

	if successCount != 10 {
		t.Errorf("expected 10 successful requests, got %d", successCount)
	}
}

func TestRateLimiter_BurstCapacityWorks(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{RPS: 5, Burst: 5})

	successCount := 0

	for i := 0; i < 10; i++ {
		if rl.Allow() {
			successCount++
		}
	}

	if successCount != 5 {
		t.Errorf("expected 5 successful burst requests, got %d", successCount)
	}
}

func TestRateLimiter_DefaultBurstIsDoubleRPS(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{RPS: 4})

	successCount := 0

	for i := 0; i < 9; i++ {
		if rl.Allow() {
			successCount++
		}
	}

	if successCount != 8 {
		t.Errorf("expected 8 successful requests (2x burst default), got %d", successCount)
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{RPS: 100, Burst: 1000})

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 10; j++ {
				_ = rl.Allow()
			}
		}()
	}

	wg.Wait()
}

func TestRateLimitMiddleware_RequestAllowed(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{RPS: 100, Burst: 100})
	logger := slog.New(slog.DiscardHandler)

	nextCalled := false
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nextCalled = true

		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(rl, logger)(nextHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !nextCalled {
		t.Error("expected next handler to be called when rate limit not exceeded")
	}

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestRateLimitMiddleware_RequestBlocked(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{RPS: 1, Burst: 1})
	logger := slog.New(slog.DiscardHandler)

	nextCalled := false
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nextCalled = true

		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(rl, logger)(nextHandler)

	req1 := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)

	if rec1.Code != http.StatusOK {
		t.Errorf("first request should succeed, got status %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec2 := httptest.NewRecorder()
	nextCalled = false

	handler.ServeHTTP(rec2, req2)

	if nextCalled {
		t.Error("expected next handler NOT to be called when rate limit exceeded")
	}

	if rec2.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rec2.Code)
	}
}

func TestRateLimitMiddleware_RFC7807ErrorFormat(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{RPS: 1, Burst: 1})
	logger := slog.New(slog.DiscardHandler)

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(rl, logger)(nextHandler)

	req1 := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)

	req2 := httptest.NewRequest(http.MethodPost, "/v1/predict", nil)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)

	contentType := rec2.Header().Get("Content-Type")
	if contentType != contentTypeProblemJSON {
		t.Errorf("expected Content-Type %s, got %s", contentTypeProblemJSON, contentType)
	}

	var problem map[string]interface{}
	if err := json.Unmarshal(rec2.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to parse error response: %v", err)
	}

	if problem["type"] != "https://biomarker.io/problems/429" {
		t.Errorf("expected type https://biomarker.io/problems/429, got %v", problem["type"])
	}

	if problem["title"] != "Too Many Requests" {
		t.Errorf("expected title 'Too Many Requests', got %v", problem["title"])
	}

	if problem["status"] != float64(429) {
		t.Errorf("expected status 429, got %v", problem["status"])
	}

	if problem["instance"] != "/v1/predict" {
		t.Errorf("expected instance /v1/predict, got %v", problem["instance"])
	}
}

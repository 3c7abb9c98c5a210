package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scrypster/energy-services/web/handlers"
	"github.com/stretchr/testify/assert"
)

func TestRateLimitMiddleware_RejectsOverBurst(t *testing.T) {
	rl := handlers.NewRateLimiter(1, 2)
	handler := handlers.RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), rl)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/api/chat", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	rl := handlers.NewRateLimiter(0, 0)
	handler := handlers.RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), rl)

	for i := 0; i < 20; i++ {
		req := httptest.NewRequest("POST", "/api/chat", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

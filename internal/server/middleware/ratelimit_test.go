package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/gosuda/crewdeck/internal/server/middleware"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRateLimitByIP(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := middleware.RateLimitByIP(ctx, 1, 2)(okHandler())

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// Burst of 2 passes, the third is rejected.
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1234"))

	// A different IP has its own budget.
	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:1234"))
}

func TestRateLimit_PerWorkspace(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := middleware.RateLimit(ctx, 1, 2)(okHandler())

	send := func(workspaceID uuid.UUID) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/workspaces", nil)
		req = req.WithContext(context.WithValue(req.Context(), middleware.ContextKeyWorkspaceID, workspaceID))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	a, b := uuid.New(), uuid.New()

	assert.Equal(t, http.StatusNoContent, send(a))
	assert.Equal(t, http.StatusNoContent, send(a))
	assert.Equal(t, http.StatusTooManyRequests, send(a))

	// Workspace b is unaffected by a's exhaustion.
	assert.Equal(t, http.StatusNoContent, send(b))
}

func TestRateLimit_NoWorkspaceSkips(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := middleware.RateLimit(ctx, 1, 1)(okHandler())

	for range 5 {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

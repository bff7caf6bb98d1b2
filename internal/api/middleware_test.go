package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/travo-ai/travo/internal/auth"
	"github.com/travo-ai/travo/internal/log"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		realIP     string
		forwarded  string
		trustProxy bool
		want       string
	}{
		{"direct", "203.0.113.7:4312", "", "", false, "203.0.113.7"},
		{"headers ignored without trust", "203.0.113.7:4312", "198.51.100.1", "", false, "203.0.113.7"},
		{"x-real-ip trusted", "10.0.0.1:80", "198.51.100.1", "", true, "198.51.100.1"},
		{"x-forwarded-for trusted", "10.0.0.1:80", "", "198.51.100.2, 10.0.0.1", true, "198.51.100.2"},
		{"real-ip wins over forwarded", "10.0.0.1:80", "198.51.100.1", "198.51.100.2", true, "198.51.100.1"},
		{"garbage header falls back", "10.0.0.1:80", "not-an-ip", "", true, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimiterExhaustsBurst(t *testing.T) {
	rl := newRateLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !rl.allow("203.0.113.7") {
			t.Fatalf("request %d denied within burst", i+1)
		}
	}
	if rl.allow("203.0.113.7") {
		t.Error("request allowed beyond burst")
	}
	// Another IP has its own bucket.
	if !rl.allow("203.0.113.8") {
		t.Error("fresh IP denied")
	}
}

func TestRateLimiterCleansStaleVisitors(t *testing.T) {
	rl := newRateLimiter(1, 1)
	rl.allow("203.0.113.7")

	rl.mu.Lock()
	rl.visitors["203.0.113.7"].lastSeen = time.Now().Add(-time.Hour)
	rl.lastCleanup = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.allow("203.0.113.9")

	rl.mu.Lock()
	_, stale := rl.visitors["203.0.113.7"]
	rl.mu.Unlock()
	if stale {
		t.Error("stale visitor survived cleanup")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(log.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware([]string{"http://localhost:5173"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed origin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "http://localhost:5173")
		handler.ServeHTTP(rec, r)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("unknown origin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://evil.example")
		handler.ServeHTTP(rec, r)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want empty", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodOptions, "/", nil)
		r.Header.Set("Origin", "http://localhost:5173")
		handler.ServeHTTP(rec, r)
		if rec.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d, want 204", rec.Code)
		}
	})
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	userID := uuid.New()
	valid, err := tokens.Issue(userID, "a@b.c")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var gotUserID uuid.UUID
	handler := authMiddleware(tokens, log.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = userIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			handler.ServeHTTP(rec, r)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}

	if gotUserID != userID {
		t.Errorf("context user = %v, want %v", gotUserID, userID)
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJWTAuth_Middleware(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	userID := uuid.New()

	valid, err := auth.GenerateAccessToken(userID, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	expired, _ := auth.GenerateAccessToken(userID, -time.Hour)
	foreign, _ := NewJWTAuth("other-secret").GenerateAccessToken(userID, time.Hour)

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Token " + valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen uuid.UUID
			h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetUserID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			if tc.wantCode == http.StatusOK && seen != userID {
				t.Fatalf("expected user id %s in context, got %s", userID, seen)
			}
		})
	}
}

func TestJWTAuth_ParseTokenRejectsMissingUserID(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	if _, err := auth.ParseToken("not-a-jwt"); err == nil {
		t.Fatalf("expected error for malformed token")
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("user:a") || !rl.Allow("user:a") {
		t.Fatalf("expected first two requests to pass")
	}
	if rl.Allow("user:a") {
		t.Fatalf("expected third request to be limited")
	}
	if !rl.Allow("user:b") {
		t.Fatalf("expected other keys to be unaffected")
	}

	now = now.Add(2 * time.Minute)
	if !rl.Allow("user:a") {
		t.Fatalf("expected a new window to reset the count")
	}
}

func TestRateLimiter_MiddlewareReturns429(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 2)
	for i := range codes {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes[i] = rr.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected 200 then 429, got %v", codes)
	}
}

func TestRequestID(t *testing.T) {
	var inHandler string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inHandler = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if inHandler == "" || rr.Header().Get(RequestIDHeader) != inHandler {
		t.Fatalf("expected generated request id to be echoed, got %q / %q", inHandler, rr.Header().Get(RequestIDHeader))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if inHandler != "abc-123" {
		t.Fatalf("expected incoming request id to be kept, got %q", inHandler)
	}
}

package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAllowWithinLimit(t *testing.T) {
	l := NewLimiter(3)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("request over limit allowed")
	}
	// A different client has its own window.
	if !l.Allow("10.0.0.2") {
		t.Fatal("independent client denied")
	}
}

func TestMiddlewareRejectsWith429(t *testing.T) {
	l := NewLimiter(1)
	defer l.Stop()

	handler := l.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
}

func TestRemoveStale(t *testing.T) {
	l := NewLimiter(10)
	defer l.Stop()

	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")
	if got := l.ActiveClients(); got != 2 {
		t.Fatalf("ActiveClients = %d, want 2", got)
	}

	l.removeStale()
	// Both windows are fresh; nothing should be evicted.
	if got := l.ActiveClients(); got != 2 {
		t.Fatalf("ActiveClients after cleanup = %d, want 2", got)
	}
}

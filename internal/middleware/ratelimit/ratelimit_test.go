package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute})
	t.Cleanup(rl.Stop)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestAllowFixedWindow(t *testing.T) {
	rl, now := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("fourth request in the window should be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("other clients have their own window")
	}

	*now = now.Add(time.Minute)
	if !rl.Allow("10.0.0.1") {
		t.Error("a new window should reset the count")
	}

	if n := len(rl.windows); n != 2 {
		t.Errorf("tracked clients = %d, want 2", n)
	}
}

func TestRetryAfterCountsDownTheWindow(t *testing.T) {
	rl, now := newTestLimiter(t, 1)
	rl.Allow("10.0.0.1")

	*now = now.Add(45 * time.Second)
	ok, wait := rl.take("10.0.0.1")
	if ok || wait != 15*time.Second {
		t.Fatalf("take = %v, %v; want rejected with 15s left", ok, wait)
	}

	for d, want := range map[time.Duration]string{
		15 * time.Second:        "15",
		1500 * time.Millisecond: "2",
		0:                       "1",
	} {
		if got := retryAfter(d); got != want {
			t.Errorf("retryAfter(%v) = %s, want %s", d, got, want)
		}
	}
}

func TestSweepForgetsIdleClients(t *testing.T) {
	rl, now := newTestLimiter(t, 3)
	rl.Allow("10.0.0.1")
	*now = now.Add(11 * time.Minute)
	rl.Allow("10.0.0.2")

	rl.sweep()
	if _, ok := rl.windows["10.0.0.1"]; ok {
		t.Error("idle client should be forgotten")
	}
	if _, ok := rl.windows["10.0.0.2"]; !ok {
		t.Error("active client should be kept")
	}
}

func TestMiddlewareLimitsWritesOnly(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	ip := func(*http.Request) string { return "10.0.0.1" }
	h := rl.Middleware(ip, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		method string
		want   int
	}{
		{http.MethodPost, http.StatusNoContent},
		{http.MethodPost, http.StatusTooManyRequests},
		{http.MethodGet, http.StatusNoContent},
		{http.MethodDelete, http.StatusTooManyRequests},
	}
	for i, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/months", nil))
		if rec.Code != tt.want {
			t.Errorf("request %d %s: status = %d, want %d", i+1, tt.method, rec.Code, tt.want)
		}
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "60" {
			t.Errorf("request %d: missing Retry-After", i+1)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}

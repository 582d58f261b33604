package rate

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGuardBudget(t *testing.T) {
	decl := Provider("test").MaxRequestsPer(Minute, 2)
	guard := NewGuard(decl)
	now := time.Now()

	if d := guard.ShouldCall(now); !d.Allowed {
		t.Fatalf("first call blocked: %+v", d)
	}
	if d := guard.ShouldCall(now); !d.Allowed {
		t.Fatalf("second call blocked: %+v", d)
	}

	d := guard.ShouldCall(now)
	if d.Allowed {
		t.Fatalf("third call must exceed the budget")
	}
	if d.Reason != "budget" {
		t.Fatalf("unexpected reason: %q", d.Reason)
	}
	if d.RetryAt.IsZero() {
		t.Fatalf("budget decision must carry a retry time")
	}

	// Tokens refill with time.
	if d := guard.ShouldCall(now.Add(time.Minute)); !d.Allowed {
		t.Fatalf("refilled bucket still blocked: %+v", d)
	}
}

func TestGuardNoLimitsDisabled(t *testing.T) {
	guard := NewGuard(Provider("test"))
	if d := guard.ShouldCall(time.Now()); d.Allowed {
		t.Fatalf("provider without declared limits must be disabled")
	}
}

func TestGuardCooldownOn429(t *testing.T) {
	decl := Provider("test").MaxRequestsPer(Minute, 100)
	guard := NewGuard(decl)

	headers := http.Header{}
	headers.Set("Retry-After", "60")
	guard.RecordResponse(http.StatusTooManyRequests, headers)

	d := guard.ShouldCall(time.Now())
	if d.Allowed {
		t.Fatalf("expected cooldown after 429")
	}
	if d.Reason != "cooldown" {
		t.Fatalf("unexpected reason: %q", d.Reason)
	}
	if until := time.Until(d.RetryAt); until < 55*time.Second || until > 65*time.Second {
		t.Fatalf("cooldown should honor Retry-After, retry in %s", until)
	}

	// 2xx responses never start a cooldown.
	fresh := NewGuard(decl)
	fresh.RecordResponse(http.StatusOK, http.Header{})
	if d := fresh.ShouldCall(time.Now()); !d.Allowed {
		t.Fatalf("unexpected cooldown after 200: %+v", d)
	}
}

func TestWrapHTTPBlocksAndCaches(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = io.WriteString(w, "payload")
	}))
	defer server.Close()

	decl := Provider("test").MaxRequestsPer(Minute, 1).CacheFor(time.Minute)
	client := WrapHTTP(decl, nil)

	resp, err := client.Get(server.URL + "/thing")
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "payload" {
		t.Fatalf("unexpected body: %q", body)
	}

	// Budget exhausted: second request is served from cache.
	resp, err = client.Get(server.URL + "/thing")
	if err != nil {
		t.Fatalf("cached request: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "payload" {
		t.Fatalf("unexpected cached body: %q", body)
	}
	if hits != 1 {
		t.Fatalf("expected one upstream hit, got %d", hits)
	}

	// A different URL has no cache entry and surfaces the limit.
	_, err = client.Get(server.URL + "/other")
	var rateErr RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rateErr.Provider != "test" {
		t.Fatalf("unexpected provider: %q", rateErr.Provider)
	}
}

package throttle_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/ErlanBelekov/user-management/internal/throttle"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

type failingStore struct{ calls int }

func (s *failingStore) Increment(context.Context, string, time.Duration) (int64, error) {
	s.calls++
	return 0, errors.New("connection refused")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newThrottler(clock *fakeClock, rates throttle.Rates) *throttle.Throttler {
	return throttle.NewThrottler(throttle.NewMemoryStore(clock.Now), rates, discardLogger())
}

var logins = throttle.ScopedPolicy("logins", "10/hour")

func post(ip string) throttle.Request {
	return throttle.Request{Method: http.MethodPost, IP: ip}
}

func TestThrottler_OnePerMinute(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 5, 0, time.UTC)}
	th := newThrottler(clock, throttle.Rates{"logins": "1/minute"})
	ctx := context.Background()

	if d := th.Check(ctx, post("10.0.0.1"), clock.t, logins); !d.Allowed {
		t.Fatal("first request should be allowed")
	}

	clock.t = clock.t.Add(20 * time.Second)
	d := th.Check(ctx, post("10.0.0.1"), clock.t, logins)
	if d.Allowed {
		t.Fatal("second request in the same minute should be rejected")
	}
	if d.RetryAfter != 35*time.Second {
		t.Errorf("retry after = %v, want 35s (window boundary)", d.RetryAfter)
	}
	if d.Scope != "logins" {
		t.Errorf("scope = %q", d.Scope)
	}

	clock.t = clock.t.Add(40 * time.Second)
	if d := th.Check(ctx, post("10.0.0.1"), clock.t, logins); !d.Allowed {
		t.Fatal("request after the window rolls over should be allowed")
	}
}

func TestThrottler_IdentityIsolation(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	th := newThrottler(clock, throttle.Rates{"logins": "1/minute"})
	ctx := context.Background()
	byName := throttle.UsernamePolicy("logins", "10/hour")

	if !th.Check(ctx, post("10.0.0.1"), clock.t, logins).Allowed {
		t.Fatal("ip 1 first request")
	}
	if !th.Check(ctx, post("10.0.0.2"), clock.t, logins).Allowed {
		t.Error("a different IP must not share the counter")
	}

	jimmy := throttle.Request{Method: http.MethodPost, IP: "10.0.0.3", Username: "jimmy"}
	other := throttle.Request{Method: http.MethodPost, IP: "10.0.0.4", Username: "another_jimmy_here"}
	if !th.Check(ctx, jimmy, clock.t, byName).Allowed {
		t.Fatal("jimmy first request")
	}
	if !th.Check(ctx, other, clock.t, byName).Allowed {
		t.Error("a different username must not share the counter")
	}

	jimmyElsewhere := throttle.Request{Method: http.MethodPost, IP: "10.0.0.5", Username: "  JIMMY "}
	if th.Check(ctx, jimmyElsewhere, clock.t, byName).Allowed {
		t.Error("same normalized username from another IP should be throttled")
	}
}

func TestThrottler_SafeMethodsBypass(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	th := newThrottler(clock, throttle.Rates{"logins": "0/minute"})

	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodDelete, http.MethodPut} {
		r := throttle.Request{Method: m, IP: "10.0.0.1"}
		if !th.Check(context.Background(), r, clock.t, logins).Allowed {
			t.Errorf("%s should bypass throttling", m)
		}
	}
	if th.Check(context.Background(), post("10.0.0.1"), clock.t, logins).Allowed {
		t.Error("POST should be throttled with a zero budget")
	}
}

func TestUsernamePolicy_ExemptsAuthenticated(t *testing.T) {
	p := throttle.UsernamePolicy("logins", "10/hour")

	if _, ok := p.Identify(throttle.Request{UserID: "user-1", Username: "jimmy"}); ok {
		t.Error("authenticated callers are covered by another policy")
	}
	if _, ok := p.Identify(throttle.Request{}); ok {
		t.Error("no username, nothing to key on")
	}
	if id, ok := p.Identify(throttle.Request{Username: " Jimmy@Example.com "}); !ok || id != "jimmy@example.com" {
		t.Errorf("identity = %q, %v", id, ok)
	}
}

func TestScopedPolicy_PrefersUserID(t *testing.T) {
	p := throttle.ScopedPolicy("passwords", "3/hour")

	id, ok := p.Identify(throttle.Request{UserID: "user-1", IP: "10.0.0.1"})
	if !ok || id != "user:user-1" {
		t.Errorf("authenticated identity = %q", id)
	}
	id, ok = p.Identify(throttle.Request{IP: "10.0.0.1"})
	if !ok || id != "ip:10.0.0.1" {
		t.Errorf("anonymous identity = %q", id)
	}
}

func TestThrottler_FailsOpen(t *testing.T) {
	store := &failingStore{}
	th := throttle.NewThrottler(store, throttle.Rates{"logins": "0/minute"}, discardLogger())

	var hooked int
	th.OnStoreError(func(throttle.Policy) { hooked++ })

	if !th.Check(context.Background(), post("10.0.0.1"), time.Now(), logins).Allowed {
		t.Error("store failure must allow the request")
	}
	if store.calls != 1 || hooked != 1 {
		t.Errorf("calls = %d, hooked = %d", store.calls, hooked)
	}
}

func TestThrottler_InvalidRateFailsOpen(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	th := newThrottler(clock, throttle.Rates{"logins": "garbage"})
	if !th.Check(context.Background(), post("10.0.0.1"), clock.t, logins).Allowed {
		t.Error("misconfigured rate should not block traffic")
	}
}

func TestMemoryStore_ExpiresKeys(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	s := throttle.NewMemoryStore(clock.Now)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, _ := s.Increment(ctx, "k", time.Minute)
		if got != want {
			t.Fatalf("count = %d, want %d", got, want)
		}
	}

	clock.t = clock.t.Add(time.Minute)
	if got, _ := s.Increment(ctx, "k", time.Minute); got != 1 {
		t.Errorf("after ttl count = %d, want 1", got)
	}
}

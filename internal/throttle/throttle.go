// Package throttle rate-limits mutating requests per (scope, identity) pair
// over fixed time windows.
package throttle

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Request is what a policy needs to know about an incoming call.
type Request struct {
	Method   string
	IP       string
	UserID   string // empty when anonymous
	Username string // submitted username field, if any
}

func (r Request) Authenticated() bool { return r.UserID != "" }

// Policy derives the counter identity for a request. Identify returns false
// when the policy does not apply to the request.
type Policy struct {
	Name        string
	Scope       string
	DefaultRate string
	Identify    func(r Request) (string, bool)
}

// IPPolicy keys on the caller's address.
func IPPolicy(scope, defaultRate string) Policy {
	return Policy{
		Name:        "ip",
		Scope:       scope,
		DefaultRate: defaultRate,
		Identify: func(r Request) (string, bool) {
			return r.IP, r.IP != ""
		},
	}
}

// UsernamePolicy keys on the normalized submitted username and only applies
// to anonymous callers.
func UsernamePolicy(scope, defaultRate string) Policy {
	return Policy{
		Name:        "username",
		Scope:       scope,
		DefaultRate: defaultRate,
		Identify: func(r Request) (string, bool) {
			if r.Authenticated() {
				return "", false
			}
			name := NormalizeUsername(r.Username)
			return name, name != ""
		},
	}
}

// ScopedPolicy keys on the user id, or the address for anonymous callers.
func ScopedPolicy(scope, defaultRate string) Policy {
	return Policy{
		Name:        "scoped",
		Scope:       scope,
		DefaultRate: defaultRate,
		Identify: func(r Request) (string, bool) {
			if r.Authenticated() {
				return "user:" + r.UserID, true
			}
			return "ip:" + r.IP, r.IP != ""
		},
	}
}

func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Decision is the outcome of a throttle check. RetryAfter is set when the
// request was rejected.
type Decision struct {
	Allowed    bool
	Scope      string
	RetryAfter time.Duration
}

type Throttler struct {
	store   Store
	rates   Rates
	logger  *slog.Logger
	onError func(policy Policy)
}

func NewThrottler(store Store, rates Rates, logger *slog.Logger) *Throttler {
	return &Throttler{
		store:  store,
		rates:  rates,
		logger: logger.With("component", "throttle"),
	}
}

// OnStoreError registers a hook called whenever the store fails.
func (t *Throttler) OnStoreError(fn func(policy Policy)) {
	t.onError = fn
}

// Check evaluates the policies in order and returns the first rejection.
// Only POST requests are throttled. Store failures fail open.
func (t *Throttler) Check(ctx context.Context, r Request, now time.Time, policies ...Policy) Decision {
	if r.Method != http.MethodPost {
		return Decision{Allowed: true}
	}

	for _, p := range policies {
		identity, ok := p.Identify(r)
		if !ok {
			continue
		}
		d := t.Allow(ctx, p, identity, now)
		if !d.Allowed {
			return d
		}
	}
	return Decision{Allowed: true}
}

// Allow counts one request for (policy, identity) in the window containing
// now. It is the only place that touches the store.
func (t *Throttler) Allow(ctx context.Context, p Policy, identity string, now time.Time) Decision {
	rate, err := t.rates.Lookup(p.Scope, p.DefaultRate)
	if err != nil {
		t.logger.ErrorContext(ctx, "invalid throttle rate, allowing request", "scope", p.Scope, "error", err)
		return Decision{Allowed: true, Scope: p.Scope}
	}
	if rate.Window <= 0 {
		return Decision{Allowed: true, Scope: p.Scope}
	}

	window := now.UnixNano() / int64(rate.Window)
	windowEnd := time.Unix(0, (window+1)*int64(rate.Window))

	count, err := t.store.Increment(ctx, counterKey(p, identity, window), rate.Window)
	if err != nil {
		t.logger.WarnContext(ctx, "throttle store unavailable, allowing request", "scope", p.Scope, "policy", p.Name, "error", err)
		if t.onError != nil {
			t.onError(p)
		}
		return Decision{Allowed: true, Scope: p.Scope}
	}

	if count > int64(rate.Count) {
		return Decision{Allowed: false, Scope: p.Scope, RetryAfter: windowEnd.Sub(now)}
	}
	return Decision{Allowed: true, Scope: p.Scope}
}

func counterKey(p Policy, identity string, window int64) string {
	return "throttle:" + p.Name + ":" + p.Scope + ":" + identity + ":" + strconv.FormatInt(window, 10)
}

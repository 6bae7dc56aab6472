package throttle

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rate is a request budget per fixed window.
type Rate struct {
	Count  int
	Window time.Duration
}

// ParseRate parses "<count>/<period>" where only the first letter of the
// period matters: s(econd), m(inute), h(our), d(ay).
func ParseRate(s string) (Rate, error) {
	countPart, periodPart, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || periodPart == "" {
		return Rate{}, fmt.Errorf("invalid rate %q: want <count>/<period>", s)
	}

	count, err := strconv.Atoi(countPart)
	if err != nil || count < 0 {
		return Rate{}, fmt.Errorf("invalid rate %q: bad count", s)
	}

	var window time.Duration
	switch periodPart[0] {
	case 's':
		window = time.Second
	case 'm':
		window = time.Minute
	case 'h':
		window = time.Hour
	case 'd':
		window = 24 * time.Hour
	default:
		return Rate{}, fmt.Errorf("invalid rate %q: unknown period", s)
	}

	return Rate{Count: count, Window: window}, nil
}

func (r Rate) String() string {
	switch r.Window {
	case time.Second:
		return fmt.Sprintf("%d/second", r.Count)
	case time.Minute:
		return fmt.Sprintf("%d/minute", r.Count)
	case time.Hour:
		return fmt.Sprintf("%d/hour", r.Count)
	case 24 * time.Hour:
		return fmt.Sprintf("%d/day", r.Count)
	}
	return fmt.Sprintf("%d/%s", r.Count, r.Window)
}

// Rates maps a scope to its configured rate string.
type Rates map[string]string

// Lookup returns the configured rate for scope, or fallback when the scope is
// not configured.
func (r Rates) Lookup(scope, fallback string) (Rate, error) {
	if s, ok := r[scope]; ok {
		return ParseRate(s)
	}
	return ParseRate(fallback)
}

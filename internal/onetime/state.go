package onetime

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultStateTokenTimeout = 3 * 24 * time.Hour

// stateEpoch keeps the base36 timestamps short.
var stateEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// State is the mutable user state a state-derived token is bound to.
type State struct {
	UserID       string
	PasswordHash string
	LastLogin    time.Time
}

// StateTokenGenerator makes tokens of the form "<base36 ts>-<hmac>". A token
// verifies only while the user's password hash and last login are unchanged
// and the timeout has not passed.
type StateTokenGenerator struct {
	secret  []byte
	timeout time.Duration
	now     func() time.Time
}

func NewStateTokenGenerator(secret []byte, timeout time.Duration, opts ...Option) *StateTokenGenerator {
	if timeout <= 0 {
		timeout = DefaultStateTokenTimeout
	}
	o := buildOptions(opts)
	return &StateTokenGenerator{secret: secret, timeout: timeout, now: o.now}
}

func (g *StateTokenGenerator) Make(state State) string {
	return g.makeAt(state, int64(g.now().Sub(stateEpoch)/time.Second))
}

// Check reports whether token was made for state and is within the timeout.
func (g *StateTokenGenerator) Check(state State, token string) bool {
	tsPart, _, ok := strings.Cut(token, "-")
	if !ok || tsPart == "" {
		return false
	}
	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil || ts < 0 {
		return false
	}

	want := g.makeAt(state, ts)
	if !hmac.Equal([]byte(want), []byte(token)) {
		return false
	}

	age := g.now().Sub(stateEpoch.Add(time.Duration(ts) * time.Second))
	return age <= g.timeout
}

func (g *StateTokenGenerator) makeAt(state State, ts int64) string {
	var lastLogin int64
	if !state.LastLogin.IsZero() {
		lastLogin = state.LastLogin.Unix()
	}

	mac := hmac.New(sha256.New, g.secret)
	fmt.Fprintf(mac, "%s|%s|%d|%d", state.UserID, state.PasswordHash, lastLogin, ts)
	sum := hex.EncodeToString(mac.Sum(nil))

	return strconv.FormatInt(ts, 36) + "-" + sum[:32]
}

package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ErlanBelekov/user-management/internal/domain"
	"github.com/ErlanBelekov/user-management/internal/email"
	"github.com/ErlanBelekov/user-management/internal/password"
	"github.com/ErlanBelekov/user-management/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// plainHasher keeps tests fast; it is not a real hash.
type plainHasher struct {
	verifies int
}

func (h *plainHasher) Hash(pw string) (string, error) { return "plain$" + pw, nil }

func (h *plainHasher) Verify(pw, encoded string) error {
	h.verifies++
	if !strings.HasPrefix(encoded, "plain$") {
		return password.ErrInvalidFormat
	}
	if encoded != "plain$"+pw {
		return password.ErrMismatch
	}
	return nil
}

type memUsers struct {
	mu     sync.Mutex
	byID   map[string]*domain.User
	nextID int
	clock  *fakeClock
}

var _ repository.UserRepository = (*memUsers)(nil)

func newMemUsers(clock *fakeClock) *memUsers {
	return &memUsers{byID: make(map[string]*domain.User), clock: clock}
}

func (m *memUsers) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == strings.ToLower(u.Email) {
			return nil, domain.ErrEmailTaken
		}
	}
	m.nextID++
	created := *u
	created.ID = "user-" + strconv.Itoa(m.nextID)
	created.Email = strings.ToLower(u.Email)
	created.DateJoined = m.clock.Now()
	created.LastLogin = m.clock.Now()
	created.UpdatedAt = m.clock.Now()
	m.byID[created.ID] = &created
	out := created
	return &out, nil
}

func (m *memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (m *memUsers) FindByEmail(_ context.Context, addr string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == strings.ToLower(addr) {
			out := *u
			return &out, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memUsers) List(_ context.Context, in repository.ListUsersInput) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.User
	for _, u := range m.byID {
		if in.CursorEmail == "" || u.Email > in.CursorEmail {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	if in.Limit > 0 && len(out) > in.Limit {
		out = out[:in.Limit]
	}
	return out, nil
}

func (m *memUsers) mutate(id string, fn func(u *domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (m *memUsers) UpdateName(ctx context.Context, id, name string) (*domain.User, error) {
	if err := m.mutate(id, func(u *domain.User) { u.Name = name }); err != nil {
		return nil, err
	}
	return m.FindByID(ctx, id)
}

func (m *memUsers) SetAvatar(ctx context.Context, id string, avatar *string) (*domain.User, error) {
	if err := m.mutate(id, func(u *domain.User) { u.Avatar = avatar }); err != nil {
		return nil, err
	}
	return m.FindByID(ctx, id)
}

func (m *memUsers) SetPassword(_ context.Context, id, hash string) error {
	return m.mutate(id, func(u *domain.User) { u.PasswordHash = hash })
}

func (m *memUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return m.mutate(id, func(u *domain.User) { u.LastLogin = at })
}

func (m *memUsers) MarkVerified(_ context.Context, id string) error {
	return m.mutate(id, func(u *domain.User) {
		u.EmailVerified = true
		u.IsActive = true
	})
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(m.byID, id)
	return nil
}

type memTokens struct {
	mu        sync.Mutex
	byKey     map[string]domain.AuthToken
	conflicts int // next N creates fail with ErrTokenConflict
	creates   int
}

var _ repository.AuthTokenRepository = (*memTokens)(nil)

func newMemTokens() *memTokens {
	return &memTokens{byKey: make(map[string]domain.AuthToken)}
}

func (m *memTokens) Create(_ context.Context, t *domain.AuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.conflicts > 0 {
		m.conflicts--
		return domain.ErrTokenConflict
	}
	if _, ok := m.byKey[t.Key]; ok {
		return domain.ErrTokenConflict
	}
	m.byKey[t.Key] = *t
	return nil
}

func (m *memTokens) Get(_ context.Context, key string) (*domain.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byKey[key]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	return &t, nil
}

func (m *memTokens) UpdateExpiry(_ context.Context, key string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byKey[key]
	if !ok {
		return domain.ErrTokenNotFound
	}
	t.Expires = expires
	m.byKey[key] = t
	return nil
}

func (m *memTokens) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byKey, key)
	return nil
}

func (m *memTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, t := range m.byKey {
		if !t.Expires.After(now) {
			delete(m.byKey, k)
			n++
		}
	}
	return n, nil
}

func (m *memTokens) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byKey)
}

type sentReset struct {
	to, uid, token string
}

type sentValidation struct {
	to, token string
}

type recordingNotifier struct {
	mu          sync.Mutex
	resets      []sentReset
	validations []sentValidation
	err         error
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, _ email.Site, to, _, uid, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.resets = append(n.resets, sentReset{to: to, uid: uid, token: token})
	return nil
}

func (n *recordingNotifier) SendValidation(_ context.Context, _ email.Site, to, _, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.validations = append(n.validations, sentValidation{to: to, token: token})
	return nil
}

var errBoom = errors.New("boom")

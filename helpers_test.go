package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSalt      = "test-persistent-salt"
	testUserAgent = "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := OpenDB(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.HashCost = bcrypt.MinCost
	opts.PersistentTokenSalt = testSalt
	return opts
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeRequest is a RequestContext whose cookie jar behaves like a browser
// across requests: Cookie writes are visible to later Cookies reads.
type fakeRequest struct {
	headers map[string]string
	cookies map[string]string
	set     []*router.Cookie
}

func newFakeRequest(userAgent string) *fakeRequest {
	return &fakeRequest{
		headers: map[string]string{"User-Agent": userAgent, "Host": "example.com:8443"},
		cookies: map[string]string{},
	}
}

func (r *fakeRequest) Header(key string) string {
	return r.headers[key]
}

func (r *fakeRequest) Cookies(key string, defaultValue ...string) string {
	if v, ok := r.cookies[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (r *fakeRequest) Cookie(c *router.Cookie) {
	r.set = append(r.set, c)
	// expiring cookies always carry an empty value
	if c.Value == "" {
		delete(r.cookies, c.Name)
		return
	}
	r.cookies[c.Name] = c.Value
}

// next simulates a follow up request from the same browser
func (r *fakeRequest) next() *fakeRequest {
	n := &fakeRequest{
		headers: map[string]string{},
		cookies: map[string]string{},
	}
	for k, v := range r.headers {
		n.headers[k] = v
	}
	for k, v := range r.cookies {
		n.cookies[k] = v
	}
	return n
}

func (r *fakeRequest) lastCookie(name string) *router.Cookie {
	for i := len(r.set) - 1; i >= 0; i-- {
		if r.set[i].Name == name {
			return r.set[i]
		}
	}
	return nil
}

// memSession is a SessionStore and SessionRenewer kept in memory
type memSession struct {
	data      map[string]string
	renewed   int
	destroyed bool
}

func newMemSession() *memSession {
	return &memSession{data: map[string]string{}}
}

func (s *memSession) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memSession) Set(_ context.Context, key, value string) error {
	s.data[key] = value
	return nil
}

func (s *memSession) Delete(_ context.Context, key string) error {
	delete(s.data, key)
	return nil
}

func (s *memSession) Destroy(context.Context) error {
	s.data = map[string]string{}
	s.destroyed = true
	return nil
}

func (s *memSession) Renew(context.Context) error {
	s.renewed++
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) types() []ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) log(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+strings.TrimSpace(render(format, args...)))
}

func (l *captureLogger) Debug(format string, args ...any) { l.log("DBG", format, args...) }
func (l *captureLogger) Info(format string, args ...any)  { l.log("INF", format, args...) }
func (l *captureLogger) Warn(format string, args ...any)  { l.log("WRN", format, args...) }
func (l *captureLogger) Error(format string, args ...any) { l.log("ERR", format, args...) }

// seedUser inserts a user with a known password straight through the store
func seedUser(t *testing.T, repo RepositoryManager, email, password string, status UserStatus) *User {
	t.Helper()

	hash, err := NewBcryptHasher(bcrypt.MinCost).Hash(password)
	require.NoError(t, err)

	u := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Ada",
		LastName:     "Lovelace",
	}
	u.applyStatus(status)
	if status == UserStatusPending {
		u.ActivationToken = "seed-" + u.ID.String()
	}

	created, err := repo.Users().CreateUser(context.Background(), u)
	require.NoError(t, err)
	return created
}

func newTestAuther(t *testing.T) (*Auther, RepositoryManager, *testClock) {
	t.Helper()

	db := newTestDB(t)
	repo := NewRepositoryManager(db)
	clock := newTestClock()

	auther := NewAuthenticator(repo, testOptions()).
		WithLogger(&captureLogger{}).
		WithClock(clock.Now)

	return auther, repo, clock
}

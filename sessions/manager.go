package sessions

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/goliatone/go-router"
)

const (
	// DefaultCookieName is the session cookie name
	DefaultCookieName = "auth_sid"
	// DefaultTTL is the idle lifetime of a session. Every request that
	// restores the session pushes its expiry forward.
	DefaultTTL = 2 * time.Hour

	sessionIDBytes = 32
)

// CookieJar reads and writes request cookies. router.Context satisfies it.
type CookieJar interface {
	Cookies(key string, defaultValue ...string) string
	Cookie(cookie *router.Cookie)
}

// Logger is the logging interface used by the manager
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

// Manager opens sessions for requests
type Manager struct {
	backend    Backend
	cookieName string
	ttl        time.Duration
	secure     bool
	domain     string
	now        func() time.Time
	random     io.Reader
	logger     Logger
}

// Option customizes a Manager
type Option func(*Manager)

// WithCookieName sets the session cookie name
func WithCookieName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.cookieName = name
		}
	}
}

// WithTTL sets how long an untouched session lives
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSecure marks the cookie Secure
func WithSecure(secure bool) Option {
	return func(m *Manager) {
		m.secure = secure
	}
}

// WithDomain sets the cookie domain
func WithDomain(domain string) Option {
	return func(m *Manager) {
		m.domain = domain
	}
}

// WithClock injects the clock used for cookie expiry
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithRandom injects the entropy source for session ids
func WithRandom(r io.Reader) Option {
	return func(m *Manager) {
		if r != nil {
			m.random = r
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager returns a manager persisting through backend
func NewManager(backend Backend, opts ...Option) *Manager {
	m := &Manager{
		backend:    backend,
		cookieName: DefaultCookieName,
		ttl:        DefaultTTL,
		now:        time.Now,
		random:     rand.Reader,
		logger:     nopLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// CookieName returns the session cookie name
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Start opens the session named by the request cookie. Unknown or expired
// ids give an empty session; a new id is only minted on the first write.
// A restored session has its expiry and cookie extended by the TTL.
func (m *Manager) Start(ctx context.Context, jar CookieJar) (*Session, error) {
	s := &Session{
		manager: m,
		jar:     jar,
		data:    map[string]string{},
	}

	id := jar.Cookies(m.cookieName)
	if id == "" {
		return s, nil
	}

	data, found, err := m.backend.Load(ctx, storageKey(id))
	if err != nil {
		return nil, err
	}

	if !found {
		m.logger.Debug("session cookie without backend data")
		return s, nil
	}

	s.id = id
	s.data = data

	if err := m.backend.Touch(ctx, storageKey(id), m.ttl); err != nil {
		m.logger.Error("failed to extend session: %v", err)
		return s, nil
	}
	m.setCookie(jar, id)
	return s, nil
}

func (m *Manager) newID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := io.ReadFull(m.random, buf); err != nil {
		return "", fmt.Errorf("read session id entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (m *Manager) setCookie(jar CookieJar, id string) {
	jar.Cookie(&router.Cookie{
		Name:     m.cookieName,
		Value:    id,
		Path:     "/",
		Domain:   m.domain,
		Expires:  m.now().Add(m.ttl),
		Secure:   m.secure,
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

func (m *Manager) clearCookie(jar CookieJar) {
	jar.Cookie(&router.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.domain,
		Expires:  m.now().Add(-time.Hour * (24 * 365)),
		Secure:   m.secure,
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

// storageKey is what the backend sees instead of the cookie value
func storageKey(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

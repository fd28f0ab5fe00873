package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

const (
	// digestHexLen is the length of one hex encoded HMAC-SHA256 digest
	digestHexLen = sha256.Size * 2
	// persistentTokenLen is random component followed by binding component
	persistentTokenLen = digestHexLen * 2

	randomComponentBytes = 32
	cookieSeparator      = "-"
)

// PersistentTokens issues, validates, rotates and revokes remember-me tokens.
//
// A token is two hex HMAC-SHA256 digests keyed by the configured salt: a
// random component and a binding component computed from the User-Agent.
// The cookie carries "<dashless user id>-<token>" and the store keeps only
// HMAC(token).
type PersistentTokens struct {
	store      PersistentLogins
	salt       []byte
	cookieName string
	domain     string
	secure     bool
	ttl        time.Duration
	now        func() time.Time
	random     io.Reader
	logger     Logger
}

// PersistentTokenOption customizes PersistentTokens
type PersistentTokenOption func(*PersistentTokens)

// WithTokenClock injects the clock used for expiry
func WithTokenClock(clock func() time.Time) PersistentTokenOption {
	return func(t *PersistentTokens) {
		if clock != nil {
			t.now = clock
		}
	}
}

// WithTokenRandom injects the entropy source for the random component
func WithTokenRandom(r io.Reader) PersistentTokenOption {
	return func(t *PersistentTokens) {
		if r != nil {
			t.random = r
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) PersistentTokenOption {
	return func(t *PersistentTokens) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewPersistentTokens builds the token manager from cfg
func NewPersistentTokens(store PersistentLogins, cfg Config, opts ...PersistentTokenOption) *PersistentTokens {
	t := &PersistentTokens{
		store:      store,
		salt:       []byte(cfg.GetPersistentTokenSalt()),
		cookieName: cfg.GetPersistentCookieName(),
		domain:     cfg.GetPersistentCookieDomain(),
		secure:     cfg.GetPersistentCookieSecure(),
		ttl:        cfg.GetPersistentLoginTTL(),
		now:        time.Now,
		random:     rand.Reader,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	return t
}

// PersistentCookie is a validated remember-me cookie
type PersistentCookie struct {
	UserID uuid.UUID
	Token  string
}

// CookieName returns the remember-me cookie name
func (t *PersistentTokens) CookieName() string {
	return t.cookieName
}

// Issue creates a token for userID, persists its hash and sets the cookie.
// It returns the cookie value.
func (t *PersistentTokens) Issue(ctx context.Context, rc RequestContext, userID uuid.UUID) (string, error) {
	token, err := t.generate(rc.Header("User-Agent"))
	if err != nil {
		return "", err
	}

	record := t.newRecord(userID, token)
	if err := t.store.Insert(ctx, record); err != nil {
		return "", err
	}

	return t.setCookie(rc, userID, token, record.ExpiresAt()), nil
}

// FromRequest validates the remember-me cookie of the request against its
// User-Agent.
func (t *PersistentTokens) FromRequest(ctx context.Context, rc RequestContext) (*PersistentCookie, error) {
	value := rc.Cookies(t.cookieName)
	if value == "" {
		return nil, ErrNoPersistentCookie
	}
	return t.Validate(ctx, value, rc.Header("User-Agent"))
}

// Validate checks a cookie value: shape, User-Agent binding, then a live
// record owned by the cookie's user.
func (t *PersistentTokens) Validate(ctx context.Context, cookieValue, userAgent string) (*PersistentCookie, error) {
	userID, token, err := parseCookieValue(cookieValue)
	if err != nil {
		return nil, err
	}

	expected := t.digest([]byte(userAgent))
	if subtle.ConstantTimeCompare([]byte(token[digestHexLen:]), []byte(expected)) != 1 {
		return nil, ErrTokenMismatch
	}

	record, err := t.store.Find(ctx, t.hash(token), t.now())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrTokenExpiredOrUnknown
		}
		return nil, err
	}

	if record.UserID != userID {
		t.logger.Warn("persistent login presented for another user", "cookie_user", userID, "record_user", record.UserID)
		return nil, ErrTokenExpiredOrUnknown
	}

	return &PersistentCookie{UserID: userID, Token: token}, nil
}

// Rotate swaps oldToken for a fresh one in a single transaction and sets the
// new cookie. ErrTokenExpiredOrUnknown means a concurrent request already
// rotated it.
func (t *PersistentTokens) Rotate(ctx context.Context, rc RequestContext, userID uuid.UUID, oldToken string) (string, error) {
	token, err := t.generate(rc.Header("User-Agent"))
	if err != nil {
		return "", err
	}

	record := t.newRecord(userID, token)
	if err := t.store.Rotate(ctx, userID, t.hash(oldToken), record); err != nil {
		return "", err
	}

	return t.setCookie(rc, userID, token, record.ExpiresAt()), nil
}

// Revoke expires the client cookie and deletes the matching server record
// when the presented cookie belongs to userID.
func (t *PersistentTokens) Revoke(ctx context.Context, rc RequestContext, userID uuid.UUID) error {
	defer t.clearCookie(rc)

	cookieUser, token, err := parseCookieValue(rc.Cookies(t.cookieName))
	if err != nil || cookieUser != userID {
		return nil
	}

	_, err = t.store.Delete(ctx, userID, t.hash(token))
	return err
}

// RevokeAll deletes every server record for userID
func (t *PersistentTokens) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	return t.store.DeleteForUser(ctx, userID)
}

// Sweep deletes every record with expiry <= now
func (t *PersistentTokens) Sweep(ctx context.Context, now time.Time) (int64, error) {
	n, err := t.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		t.logger.Debug("swept expired persistent logins", "count", n)
	}
	return n, nil
}

func (t *PersistentTokens) generate(userAgent string) (string, error) {
	buf := make([]byte, 8+randomComponentBytes)
	binary.BigEndian.PutUint64(buf, uint64(t.now().UnixNano()))
	if _, err := io.ReadFull(t.random, buf[8:]); err != nil {
		return "", fmt.Errorf("read token entropy: %w", err)
	}

	return t.digest(buf) + t.digest([]byte(userAgent)), nil
}

func (t *PersistentTokens) newRecord(userID uuid.UUID, token string) *PersistentLogin {
	return &PersistentLogin{
		TokenHash: t.hash(token),
		UserID:    userID,
		Expiry:    t.now().Add(t.ttl).Unix(),
	}
}

func (t *PersistentTokens) hash(token string) string {
	return t.digest([]byte(token))
}

func (t *PersistentTokens) digest(b []byte) string {
	mac := hmac.New(sha256.New, t.salt)
	mac.Write(b)
	return hex.EncodeToString(mac.Sum(nil))
}

func (t *PersistentTokens) setCookie(rc RequestContext, userID uuid.UUID, token string, expires time.Time) string {
	value := formatCookieValue(userID, token)
	rc.Cookie(&router.Cookie{
		Name:     t.cookieName,
		Value:    value,
		Path:     "/",
		Domain:   t.cookieDomain(rc),
		Expires:  expires,
		Secure:   t.secure,
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return value
}

func (t *PersistentTokens) clearCookie(rc RequestContext) {
	rc.Cookie(&router.Cookie{
		Name:     t.cookieName,
		Value:    "",
		Path:     "/",
		Domain:   t.cookieDomain(rc),
		Expires:  t.now().Add(-time.Hour * (24 * 365)),
		Secure:   t.secure,
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

// cookieDomain is the configured domain or the request host without port
func (t *PersistentTokens) cookieDomain(rc RequestContext) string {
	if t.domain != "" {
		return t.domain
	}
	host := rc.Header("Host")
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.Trim(host, "[]")
}

func formatCookieValue(userID uuid.UUID, token string) string {
	return hex.EncodeToString(userID[:]) + cookieSeparator + token
}

func parseCookieValue(value string) (uuid.UUID, string, error) {
	if value == "" {
		return uuid.Nil, "", ErrNoPersistentCookie
	}

	parts := strings.Split(value, cookieSeparator)
	if len(parts) != 2 {
		return uuid.Nil, "", ErrMalformedCookie
	}

	userID, err := uuid.Parse(parts[0])
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, "", ErrMalformedCookie
	}

	token := parts[1]
	if len(token) != persistentTokenLen {
		return uuid.Nil, "", ErrMalformedCookie
	}
	if _, err := hex.DecodeString(token); err != nil {
		return uuid.Nil, "", ErrMalformedCookie
	}

	return userID, token, nil
}

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds auth options
type Config interface {
	GetHashCost() int
	GetSessionNamespace() string
	GetPersistentCookieName() string
	GetPersistentCookieSecure() bool
	GetPersistentCookieDomain() string
	GetPersistentLoginTTL() time.Duration
	GetPersistentTokenSalt() string
	GetOperationTimeout() time.Duration
}

// PasswordHasher produces and checks self describing salted hashes
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// RequestContext is the slice of the HTTP layer we need: request headers
// and the cookie jar. router.Context satisfies it.
type RequestContext interface {
	Header(key string) string
	Cookies(key string, defaultValue ...string) string
	Cookie(cookie *router.Cookie)
}

// SessionStore is the per request session handle
type SessionStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Destroy(ctx context.Context) error
}

// SessionRenewer is implemented by sessions that can rotate their
// identifier. Login uses it to prevent session fixation.
type SessionRenewer interface {
	Renew(ctx context.Context) error
}

// SessionProvider opens the session for the current request
type SessionProvider interface {
	Start(ctx context.Context, rc RequestContext) (SessionStore, error)
}

// SessionProviderFunc adapts a function to SessionProvider
type SessionProviderFunc func(ctx context.Context, rc RequestContext) (SessionStore, error)

// Start implements SessionProvider.
func (f SessionProviderFunc) Start(ctx context.Context, rc RequestContext) (SessionStore, error) {
	return f(ctx, rc)
}

// ActivationNotifier delivers activation links. Delivery itself is
// outside this package.
type ActivationNotifier interface {
	SendActivation(ctx context.Context, user *User, token string) error
}

// ActivationNotifierFunc adapts a function to ActivationNotifier
type ActivationNotifierFunc func(ctx context.Context, user *User, token string) error

// SendActivation implements ActivationNotifier.
func (f ActivationNotifierFunc) SendActivation(ctx context.Context, user *User, token string) error {
	if f == nil {
		return nil
	}
	return f(ctx, user, token)
}

type noopNotifier struct{}

func (noopNotifier) SendActivation(context.Context, *User, string) error {
	return nil
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Print("[ERR] AUTH " + render(format, args...))
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Print("[WRN] AUTH " + render(format, args...))
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Print("[INF] AUTH " + render(format, args...))
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Print("[DBG] AUTH " + render(format, args...))
}

// render supports both printf style calls and message + key/value pairs.
func render(format string, args ...any) string {
	var s string
	switch {
	case len(args) == 0:
		s = format
	case strings.Contains(format, "%"):
		s = fmt.Sprintf(format, args...)
	default:
		var b strings.Builder
		b.WriteString(format)
		for i := 0; i < len(args); i += 2 {
			if i+1 < len(args) {
				fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			} else {
				fmt.Fprintf(&b, " %v", args[i])
			}
		}
		s = b.String()
	}
	return newline(s)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

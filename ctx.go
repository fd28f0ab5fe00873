package auth

import (
	"context"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

var principalCtxKey = &contextKey{"principal"}

// DefaultPrincipalLocalsKey is the router locals key the middleware uses
const DefaultPrincipalLocalsKey = "auth.principal"

type contextKey struct {
	name string
}

// AuthMethod tells how the principal was resolved
type AuthMethod string

const (
	AuthMethodAnonymous AuthMethod = "anonymous"
	AuthMethodSession   AuthMethod = "session"
	AuthMethodCookie    AuthMethod = "cookie"
)

// Principal is the identity resolved for a single request. It is a value;
// nothing shared is mutated when a request authenticates.
type Principal struct {
	UserID    uuid.UUID
	Email     string
	FirstName string
	LastName  string
	Method    AuthMethod
}

// Anonymous is the principal of a request nobody is logged into
var Anonymous = Principal{Method: AuthMethodAnonymous}

func principalFor(user *User, method AuthMethod) Principal {
	return Principal{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Method:    method,
	}
}

// IsAuthenticated reports whether a user was resolved
func (p Principal) IsAuthenticated() bool {
	return p.Method != AuthMethodAnonymous && p.Method != "" && p.UserID != uuid.Nil
}

// FullName joins first and last name
func (p Principal) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// WithPrincipal sets the Principal in the given context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext finds the principal in the context. Missing values
// resolve to Anonymous.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Anonymous, false
	}
	p, ok := ctx.Value(principalCtxKey).(Principal)
	if !ok {
		return Anonymous, false
	}
	return p, true
}

// GetRouterPrincipal extracts the principal from the router locals
func GetRouterPrincipal(ctx router.Context, key string) (Principal, bool) {
	if key == "" {
		key = DefaultPrincipalLocalsKey
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return Anonymous, false
	}
	p, ok := raw.(Principal)
	if !ok {
		return Anonymous, false
	}
	return p, true
}

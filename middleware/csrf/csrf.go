package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/goliatone/go-router"
	auth "github.com/goliatone/go-session-auth"
)

var (
	ErrTokenMismatch = errors.New("CSRF token mismatch")
	ErrTokenMissing  = errors.New("CSRF token missing")
)

// DefaultTokenLength is the number of random bytes in a token
const DefaultTokenLength = 32

// DefaultSessionKey is the session key holding the token
const DefaultSessionKey = "auth:csrf"

// DefaultContextKey is the default key for storing CSRF tokens in locals
const DefaultContextKey = "csrf_token"

// DefaultFormFieldName is the default name for the CSRF token form field
const DefaultFormFieldName = "_token"

// DefaultHeaderName is the default header name for CSRF tokens
const DefaultHeaderName = "X-CSRF-Token"

// Config defines the configuration for CSRF middleware
type Config struct {
	// Sessions opens the request session the token lives in. Required.
	Sessions auth.SessionProvider

	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	// TokenLength defines the number of random bytes per token
	TokenLength int

	// SessionKey is the session key holding the token
	SessionKey string

	// ContextKey defines the key for storing the token in locals
	ContextKey string

	// FormFieldName defines the name of the form field containing the token
	FormFieldName string

	// HeaderName defines the header name for the token
	HeaderName string

	// ErrorHandler defines the error handler
	ErrorHandler router.ErrorHandler

	// SafeMethods defines HTTP methods that don't require CSRF protection
	SafeMethods []string

	// Random is the entropy source for new tokens
	Random io.Reader
}

// New returns a synchronizer token middleware. The token is kept in the
// auth session so it survives the session id renewal done at login.
func New(config Config) router.MiddlewareFunc {
	cfg := configDefault(config)

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			sess, err := cfg.Sessions.Start(ctx.Context(), ctx)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			token, err := sessionToken(ctx, cfg, sess)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, token)
			ctx.Locals(cfg.ContextKey+"_field", cfg.FormFieldName)

			method := strings.ToUpper(ctx.Method())
			if slices.Contains(cfg.SafeMethods, method) {
				return ctx.Next()
			}

			received := extractToken(ctx, cfg)
			if received == "" {
				return cfg.ErrorHandler(ctx, ErrTokenMissing)
			}

			if subtle.ConstantTimeCompare([]byte(received), []byte(token)) != 1 {
				return cfg.ErrorHandler(ctx, ErrTokenMismatch)
			}

			return ctx.Next()
		}
	}
}

// Token returns the token the middleware stored for this request
func Token(ctx router.Context, contextKey ...string) string {
	key := DefaultContextKey
	if len(contextKey) > 0 && contextKey[0] != "" {
		key = contextKey[0]
	}
	token, _ := ctx.Locals(key).(string)
	return token
}

// TemplateHelpers returns the values a login or sign up view needs to
// embed the token.
func TemplateHelpers(ctx router.Context, contextKey ...string) map[string]any {
	token := Token(ctx, contextKey...)

	key := DefaultContextKey
	if len(contextKey) > 0 && contextKey[0] != "" {
		key = contextKey[0]
	}

	field := DefaultFormFieldName
	if v, ok := ctx.Locals(key + "_field").(string); ok && v != "" {
		field = v
	}

	return map[string]any{
		"csrf_token": token,
		"csrf_field": `<input type="hidden" name="` + field + `" value="` + token + `">`,
		"csrf_meta":  `<meta name="csrf-token" content="` + token + `">`,
	}
}

func sessionToken(ctx router.Context, cfg Config, sess auth.SessionStore) (string, error) {
	if token, ok, err := sess.Get(ctx.Context(), cfg.SessionKey); err != nil {
		return "", err
	} else if ok && token != "" {
		return token, nil
	}

	buf := make([]byte, cfg.TokenLength)
	if _, err := io.ReadFull(cfg.Random, buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	if err := sess.Set(ctx.Context(), cfg.SessionKey, token); err != nil {
		return "", err
	}
	return token, nil
}

// extractToken checks the form field first, then the header
func extractToken(ctx router.Context, cfg Config) string {
	if token := ctx.FormValue(cfg.FormFieldName); token != "" {
		return token
	}
	return ctx.Header(cfg.HeaderName)
}

func configDefault(cfg Config) Config {
	if cfg.Sessions == nil {
		panic("csrf: session provider required")
	}

	if cfg.TokenLength == 0 {
		cfg.TokenLength = DefaultTokenLength
	}

	if cfg.SessionKey == "" {
		cfg.SessionKey = DefaultSessionKey
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}
	}

	if cfg.Random == nil {
		cfg.Random = rand.Reader
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	return cfg
}

func defaultErrorHandler(ctx router.Context, err error) error {
	switch err {
	case ErrTokenMissing:
		return ctx.Status(router.StatusBadRequest).SendString("CSRF token missing")
	case ErrTokenMismatch:
		return ctx.Status(router.StatusForbidden).SendString("CSRF token mismatch")
	default:
		return ctx.Status(router.StatusInternalServerError).SendString("CSRF validation error")
	}
}

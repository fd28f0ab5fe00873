package auth

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// MiddlewareConfig customizes Auther.Middleware
type MiddlewareConfig struct {
	// LocalsKey is the router locals key holding the Principal
	LocalsKey string
	// ErrorHandler runs when the session cannot be started or the bootstrap
	// hits a storage failure. Defaults to returning the error.
	ErrorHandler func(c router.Context, err error) error
}

// Middleware starts the request session, resolves the Principal and stores
// it in the request context and router locals before calling the next
// handler. Anonymous requests pass through.
func (s *Auther) Middleware(provider SessionProvider, config ...MiddlewareConfig) router.MiddlewareFunc {
	cfg := MiddlewareConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.LocalsKey == "" {
		cfg.LocalsKey = DefaultPrincipalLocalsKey
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = s.defaultErrHandler
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			ctx := c.Context()

			sess, err := provider.Start(ctx, c)
			if err != nil {
				return cfg.ErrorHandler(c, err)
			}

			principal, err := s.Bootstrap(ctx, c, sess)
			if err != nil {
				return cfg.ErrorHandler(c, err)
			}

			c.SetContext(WithPrincipal(ctx, principal))
			c.Locals(cfg.LocalsKey, principal)

			return c.Next()
		}
	}
}

// RequireAuthenticated rejects requests without an authenticated Principal
// with ErrUnauthenticated. It must run after Auther.Middleware.
func RequireAuthenticated(errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = func(_ router.Context, err error) error {
			return err
		}
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			principal, ok := PrincipalFromContext(c.Context())
			if !ok || !principal.IsAuthenticated() {
				return errorHandler(c, ErrUnauthenticated)
			}
			return c.Next()
		}
	}
}

func (s *Auther) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	s.logger.Error(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)
	return richErr
}

// LoginRequest is the payload for a login form
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Remember bool   `form:"remember" json:"remember"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// MaxPasswordBytes is the longest password bcrypt accepts
const MaxPasswordBytes = 72

// maxBytes limits the encoded length, Length counts runes
func maxBytes(limit int) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if len(s) > limit {
			return fmt.Errorf("must be at most %d bytes long", limit)
		}
		return nil
	}
}

// SignUpRequest is the payload for a sign up form
type SignUpRequest struct {
	Email     string `form:"email" json:"email"`
	Password  string `form:"password" json:"password"`
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
}

// Validate will validate the payload
func (r SignUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100), validation.By(maxBytes(MaxPasswordBytes))),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
	)
}

package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds          = "INVALID_CREDENTIALS"
	TextCodeAccountInactive       = "ACCOUNT_INACTIVE"
	TextCodeAccountSuspended      = "ACCOUNT_SUSPENDED"
	TextCodeDuplicateEmail        = "DUPLICATE_EMAIL"
	TextCodeMalformedCookie       = "MALFORMED_COOKIE"
	TextCodeTokenMismatch         = "TOKEN_MISMATCH"
	TextCodeTokenExpiredOrUnknown = "TOKEN_EXPIRED_OR_UNKNOWN"
	TextCodeActivationInvalid     = "ACTIVATION_TOKEN_INVALID"
	TextCodeStorage               = "STORAGE_ERROR"
	TextCodeEmptyPassword         = "EMPTY_PASSWORD"
	TextCodePasswordTooLong       = "PASSWORD_TOO_LONG"
	TextCodeInvalidSignUp         = "INVALID_SIGN_UP"
	TextCodeNoPersistentCookie    = "NO_PERSISTENT_COOKIE"
	TextCodeUnauthenticated       = "UNAUTHENTICATED"
)

// ErrInvalidCredentials unknown email or wrong password
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountInactive the account has not been activated yet
var ErrAccountInactive = goerrors.New("account has not been activated", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountSuspended the account has been suspended
var ErrAccountSuspended = goerrors.New("account has been suspended", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountSuspended).
	WithCode(goerrors.CodeUnauthorized)

// ErrDuplicateEmail a user with the email already exists
var ErrDuplicateEmail = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrMalformedCookie the persistent cookie does not have the expected shape
var ErrMalformedCookie = goerrors.New("malformed persistent login cookie", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMalformedCookie).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenMismatch the user agent binding of the token does not match
var ErrTokenMismatch = goerrors.New("persistent login token does not match client", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMismatch).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpiredOrUnknown no live record for the presented token
var ErrTokenExpiredOrUnknown = goerrors.New("persistent login token expired or unknown", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpiredOrUnknown).
	WithCode(goerrors.CodeUnauthorized)

// ErrActivationTokenInvalid the token does not match an inactive user
var ErrActivationTokenInvalid = goerrors.New("activation token is invalid", goerrors.CategoryBadInput).
	WithTextCode(TextCodeActivationInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString password must not be empty
var ErrNoEmptyString = goerrors.New("password can not be an empty string", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrPasswordTooLong password exceeds what bcrypt can hash
var ErrPasswordTooLong = goerrors.New("password is longer than 72 bytes", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordTooLong).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidSignUp sign up payload failed validation
var ErrInvalidSignUp = goerrors.New("invalid sign up details", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidSignUp).
	WithCode(goerrors.CodeBadRequest)

// ErrNoPersistentCookie the request carries no remember-me cookie
var ErrNoPersistentCookie = goerrors.New("no persistent login cookie", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNoPersistentCookie)

// ErrUnauthenticated the request has no authenticated principal
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// storageError wraps connectivity and constraint failures so they surface
// as a generic failure instead of one of the auth kinds.
func storageError(err error, message string) error {
	if err == nil {
		return nil
	}
	if IsStorageError(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithTextCode(TextCodeStorage).
		WithCode(goerrors.CodeInternal)
}

// IsStorageError reports whether err originated in the backing store
func IsStorageError(err error) bool {
	var richErr *goerrors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeStorage
	}
	return false
}

// IsAccountStateError reports whether err is one of the account gating errors
func IsAccountStateError(err error) bool {
	return errors.Is(err, ErrAccountInactive) || errors.Is(err, ErrAccountSuspended)
}

// IsPersistentCookieError reports whether err came from cookie validation
func IsPersistentCookieError(err error) bool {
	return errors.Is(err, ErrMalformedCookie) ||
		errors.Is(err, ErrTokenMismatch) ||
		errors.Is(err, ErrTokenExpiredOrUnknown) ||
		errors.Is(err, ErrNoPersistentCookie)
}

// annotated is a per call copy of a sentinel carrying metadata. errors.Is
// matches the sentinel, errors.As finds the copy.
type annotated struct {
	err      *goerrors.Error
	sentinel *goerrors.Error
}

func (a *annotated) Error() string { return a.err.Error() }

func (a *annotated) Unwrap() error { return a.err }

func (a *annotated) Is(target error) bool {
	return target == error(a.sentinel)
}

// withMetadata decorates a copy of sentinel, never the shared value
func withMetadata(sentinel *goerrors.Error, metadata map[string]any) error {
	return &annotated{
		err:      sentinel.Clone().WithMetadata(metadata),
		sentinel: sentinel,
	}
}

package auth

import (
	"context"
	"sync"

	"github.com/goliatone/go-repository-bun"
)

// CredentialVerifier checks an email and password against the user store.
// Unknown emails still pay for a bcrypt comparison against a throwaway hash
// so response time does not reveal whether the account exists.
type CredentialVerifier struct {
	users   Users
	hasher  PasswordHasher
	conceal bool

	dummyOnce sync.Once
	dummyHash string
	dummyCost int
}

// NewCredentialVerifier will create a new CredentialVerifier
func NewCredentialVerifier(users Users, hasher PasswordHasher, cost int) *CredentialVerifier {
	return &CredentialVerifier{
		users:     users,
		hasher:    hasher,
		dummyCost: cost,
	}
}

// ConcealAccountState collapses inactive and suspended into invalid credentials
func (v *CredentialVerifier) ConcealAccountState(conceal bool) *CredentialVerifier {
	v.conceal = conceal
	return v
}

// Verify returns the user for a matching email and password.
//
// Account state is checked before the password: an inactive account fails
// with ErrAccountInactive and a suspended one with ErrAccountSuspended
// whether or not the password is right.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*User, error) {
	user, err := v.users.FindByEmail(ctx, email)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, err
	}

	hash := v.dummy()
	if user != nil {
		hash = user.PasswordHash
	}
	matches := v.hasher.Verify(password, hash)

	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if stateErr := statusAuthError(user.Status()); stateErr != nil {
		if v.conceal {
			return nil, ErrInvalidCredentials
		}
		return nil, stateErr
	}

	if !matches {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (v *CredentialVerifier) dummy() string {
	v.dummyOnce.Do(func() {
		v.dummyHash = RandomPasswordHash(v.dummyCost)
	})
	return v.dummyHash
}

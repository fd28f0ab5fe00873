package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStatus is derived from the active and suspended flags
type UserStatus string

const (
	// UserStatusPending the account was created but not activated
	UserStatusPending UserStatus = "pending"
	// UserStatusActive the account can authenticate
	UserStatusActive UserStatus = "active"
	// UserStatusSuspended the account was suspended by an operator
	UserStatusSuspended UserStatus = "suspended"
)

// User is the user model
type User struct {
	bun.BaseModel   `bun:"table:users,alias:usr"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email           string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash    string     `bun:"password_hash,notnull" json:"-"`
	FirstName       string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName        string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	ActivationToken string     `bun:"activation_token,nullzero" json:"-"`
	Active          bool       `bun:"active,notnull" json:"active"`
	Suspended       bool       `bun:"suspended,notnull" json:"suspended"`
	CreatedAt       *time.Time `bun:"date_created,nullzero,default:current_timestamp" json:"date_created,omitempty"`
	LastLoginAt     *time.Time `bun:"date_last_login,nullzero" json:"date_last_login,omitempty"`
	LastActionAt    *time.Time `bun:"date_last_action,nullzero" json:"date_last_action,omitempty"`
}

// Status maps the persisted flags to a lifecycle status. An account that
// was never activated is pending even when the suspended flag is set.
func (u *User) Status() UserStatus {
	switch {
	case u == nil:
		return ""
	case !u.Active:
		return UserStatusPending
	case u.Suspended:
		return UserStatusSuspended
	default:
		return UserStatusActive
	}
}

// IsAuthenticable reports whether the account may log in
func (u *User) IsAuthenticable() bool {
	return u != nil && u.Active && !u.Suspended
}

// IsActive reports whether the account is active and not suspended
func (u *User) IsActive() bool {
	return u.Status() == UserStatusActive
}

// IsSuspended reports whether the account is suspended
func (u *User) IsSuspended() bool {
	return u.Status() == UserStatusSuspended
}

// applyStatus sets the persisted flags for status
func (u *User) applyStatus(status UserStatus) {
	switch status {
	case UserStatusPending:
		u.Active = false
		u.Suspended = false
	case UserStatusActive:
		u.Active = true
		u.Suspended = false
	case UserStatusSuspended:
		u.Active = true
		u.Suspended = true
	}
}

// statusAuthError returns the gating error for a non authenticable status
func statusAuthError(status UserStatus) error {
	switch status {
	case UserStatusPending:
		return ErrAccountInactive
	case UserStatusSuspended:
		return ErrAccountSuspended
	default:
		return nil
	}
}

// PersistentLogin is one issued remember-me token. Only the token HMAC is
// stored; expiry is in unix seconds.
type PersistentLogin struct {
	bun.BaseModel `bun:"table:persistent_logins,alias:pl"`
	TokenHash     string    `bun:"token_hash,pk" json:"-"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Expiry        int64     `bun:"expiry,notnull" json:"expiry"`
}

// ExpiresAt returns the expiry as a time
func (p *PersistentLogin) ExpiresAt() time.Time {
	return time.Unix(p.Expiry, 0).UTC()
}

// IsExpired reports whether the record is no longer valid at now
func (p *PersistentLogin) IsExpired(now time.Time) bool {
	return p.Expiry <= now.Unix()
}

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserStatusFromFlags(t *testing.T) {
	cases := []struct {
		name          string
		user          *User
		status        UserStatus
		authenticable bool
	}{
		{"pending", &User{}, UserStatusPending, false},
		{"active", &User{Active: true}, UserStatusActive, true},
		{"suspended", &User{Active: true, Suspended: true}, UserStatusSuspended, false},
		{"suspended before activation", &User{Suspended: true}, UserStatusPending, false},
		{"nil", nil, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, tc.user.Status())
			assert.Equal(t, tc.authenticable, tc.user.IsAuthenticable())
		})
	}
}

func TestUserStatusHelpers(t *testing.T) {
	u := &User{Active: true}
	assert.True(t, u.IsActive())
	assert.False(t, u.IsSuspended())

	u.applyStatus(UserStatusSuspended)
	assert.False(t, u.IsActive())
	assert.True(t, u.IsSuspended())
	assert.True(t, u.Active, "suspension keeps the activation flag")

	u.applyStatus(UserStatusActive)
	assert.True(t, u.IsActive())

	u.applyStatus(UserStatusPending)
	assert.Equal(t, UserStatusPending, u.Status())
}

func TestStatusAuthError(t *testing.T) {
	assert.ErrorIs(t, statusAuthError(UserStatusPending), ErrAccountInactive)
	assert.ErrorIs(t, statusAuthError(UserStatusSuspended), ErrAccountSuspended)
	assert.NoError(t, statusAuthError(UserStatusActive))
}

func TestPersistentLoginExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	record := &PersistentLogin{Expiry: now.Unix()}

	assert.True(t, record.IsExpired(now), "expiry equal to now is expired")
	assert.False(t, record.IsExpired(now.Add(-time.Second)))
	assert.True(t, record.IsExpired(now.Add(time.Second)))
	assert.Equal(t, now, record.ExpiresAt())
}

package auth_test

import (
	"strings"
	"testing"

	auth "github.com/goliatone/go-session-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
			wantErr:  false,
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true, // bcrypt can hash empty strings, we do not
		},
	}

	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.Hash(tt.password)

			if tt.wantErr {
				assert.ErrorIs(t, err, auth.ErrNoEmptyString)
				return
			}

			assert.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NotEqual(t, tt.password, hash)
			assert.True(t, hasher.Verify(tt.password, hash))
		})
	}
}

func TestBcryptHasherVerify(t *testing.T) {
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("secret123")
	require.NoError(t, err)

	assert.True(t, hasher.Verify("secret123", hash))
	assert.False(t, hasher.Verify("wrong", hash))
	assert.False(t, hasher.Verify("secret123", ""))
	assert.False(t, hasher.Verify("secret123", "not-a-bcrypt-hash"))
}

func TestBcryptHasherSaltsEveryHash(t *testing.T) {
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	first, err := hasher.Hash("secret123")
	require.NoError(t, err)
	second, err := hasher.Hash("secret123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Verify("secret123", first))
	assert.True(t, hasher.Verify("secret123", second))
}

func TestBcryptHasherCost(t *testing.T) {
	hasher := auth.NewBcryptHasher(5)
	assert.Equal(t, 5, hasher.Cost())

	hash, err := hasher.Hash("secret123")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, 5, cost)

	// out of range falls back to the package default
	fallback := auth.NewBcryptHasher(bcrypt.MaxCost + 1)
	assert.GreaterOrEqual(t, fallback.Cost(), bcrypt.MinCost)
	assert.LessOrEqual(t, fallback.Cost(), bcrypt.MaxCost)
}

func TestVerifyAgainstHashFromOtherCost(t *testing.T) {
	hash, err := auth.NewBcryptHasher(bcrypt.MinCost + 1).Hash("secret123")
	require.NoError(t, err)

	// cost and salt come from the stored hash, not the verifier
	assert.True(t, auth.NewBcryptHasher(bcrypt.MinCost).Verify("secret123", hash))
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := auth.NewBcryptHasher(bcrypt.MinCost).Hash("secret123")
	require.NoError(t, err)

	assert.NoError(t, auth.ComparePasswordAndHash("secret123", hash))
	assert.ErrorIs(t, auth.ComparePasswordAndHash("nope", hash), auth.ErrInvalidCredentials)
}

func TestRandomPasswordHash(t *testing.T) {
	hash := auth.RandomPasswordHash(bcrypt.MinCost)
	require.NotEmpty(t, hash)

	_, err := bcrypt.Cost([]byte(hash))
	assert.NoError(t, err)
	assert.False(t, auth.NewBcryptHasher(bcrypt.MinCost).Verify("", hash))
}

func TestBcryptHasherRejectsOverlongPassword(t *testing.T) {
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	_, err := hasher.Hash(strings.Repeat("p", auth.MaxPasswordBytes+1))
	assert.ErrorIs(t, err, auth.ErrPasswordTooLong)

	hash, err := hasher.Hash(strings.Repeat("p", auth.MaxPasswordBytes))
	require.NoError(t, err)
	assert.True(t, hasher.Verify(strings.Repeat("p", auth.MaxPasswordBytes), hash))
}

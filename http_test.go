package auth_test

import (
	"strings"
	"testing"

	auth "github.com/goliatone/go-session-auth"
	"github.com/stretchr/testify/assert"
)

func TestLoginRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     auth.LoginRequest
		wantErr bool
	}{
		{"valid", auth.LoginRequest{Email: "ada@example.com", Password: "x"}, false},
		{"remember flag", auth.LoginRequest{Email: "ada@example.com", Password: "x", Remember: true}, false},
		{"missing email", auth.LoginRequest{Password: "x"}, true},
		{"malformed email", auth.LoginRequest{Email: "ada.example.com", Password: "x"}, true},
		{"missing password", auth.LoginRequest{Email: "ada@example.com"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSignUpRequestValidate(t *testing.T) {
	valid := auth.SignUpRequest{
		Email:     "grace@example.com",
		Password:  "long-enough",
		FirstName: "Grace",
		LastName:  "Hopper",
	}
	assert.NoError(t, valid.Validate())

	mutate := func(fn func(*auth.SignUpRequest)) auth.SignUpRequest {
		r := valid
		fn(&r)
		return r
	}

	invalid := map[string]auth.SignUpRequest{
		"short password":  mutate(func(r *auth.SignUpRequest) { r.Password = "1234567" }),
		"long password":   mutate(func(r *auth.SignUpRequest) { r.Password = strings.Repeat("p", 101) }),
		"over 72 bytes":   mutate(func(r *auth.SignUpRequest) { r.Password = strings.Repeat("é", 40) }),
		"bad email":       mutate(func(r *auth.SignUpRequest) { r.Email = "grace" }),
		"short email":     mutate(func(r *auth.SignUpRequest) { r.Email = "a@b.c" }),
		"missing first":   mutate(func(r *auth.SignUpRequest) { r.FirstName = "" }),
		"missing last":    mutate(func(r *auth.SignUpRequest) { r.LastName = "" }),
		"long first name": mutate(func(r *auth.SignUpRequest) { r.FirstName = strings.Repeat("n", 201) }),
	}

	for name, req := range invalid {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, req.Validate())
		})
	}
}

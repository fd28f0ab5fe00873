package auth_test

import (
	"context"
	"time"

	auth "github.com/goliatone/go-session-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockUsers implements auth.Users
type MockUsers struct {
	mock.Mock
}

var _ auth.Users = (*MockUsers)(nil)

func (m *MockUsers) user(args mock.Arguments) (*auth.User, error) {
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) FindByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *MockUsers) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*auth.User, error) {
	return m.user(m.Called(ctx, tx, id))
}

func (m *MockUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return m.user(m.Called(ctx, email))
}

func (m *MockUsers) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*auth.User, error) {
	return m.user(m.Called(ctx, tx, email))
}

func (m *MockUsers) FindByActivationToken(ctx context.Context, token string) (*auth.User, error) {
	return m.user(m.Called(ctx, token))
}

func (m *MockUsers) CreateUser(ctx context.Context, user *auth.User) (*auth.User, error) {
	return m.user(m.Called(ctx, user))
}

func (m *MockUsers) CreateUserTx(ctx context.Context, tx bun.IDB, user *auth.User) (*auth.User, error) {
	return m.user(m.Called(ctx, tx, user))
}

func (m *MockUsers) Activate(ctx context.Context, token string, at time.Time) (*auth.User, error) {
	return m.user(m.Called(ctx, token, at))
}

func (m *MockUsers) SetActivationToken(ctx context.Context, id uuid.UUID, token string) error {
	return m.Called(ctx, id, token).Error(0)
}

func (m *MockUsers) SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockUsers) SetLastAction(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockUsers) UpdateStatus(ctx context.Context, id uuid.UUID, status auth.UserStatus) (*auth.User, error) {
	return m.user(m.Called(ctx, id, status))
}

func (m *MockUsers) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status auth.UserStatus) (*auth.User, error) {
	return m.user(m.Called(ctx, tx, id, status))
}

func (m *MockUsers) Suspend(ctx context.Context, actor auth.ActorRef, user *auth.User, opts ...auth.TransitionOption) (*auth.User, error) {
	return m.user(m.Called(ctx, actor, user, opts))
}

func (m *MockUsers) Reinstate(ctx context.Context, actor auth.ActorRef, user *auth.User, opts ...auth.TransitionOption) (*auth.User, error) {
	return m.user(m.Called(ctx, actor, user, opts))
}

// MockActivitySink implements auth.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	return m.Called(ctx, event).Error(0)
}

// MockPasswordHasher implements auth.PasswordHasher
type MockPasswordHasher struct {
	mock.Mock
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) bool {
	return m.Called(password, hash).Bool(0)
}

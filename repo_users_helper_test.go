package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingStateMachine struct {
	targets []UserStatus
	opts    int
	err     error
}

func (s *recordingStateMachine) Transition(_ context.Context, _ ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error) {
	s.targets = append(s.targets, target)
	s.opts += len(opts)
	if s.err != nil {
		return nil, s.err
	}
	user.applyStatus(target)
	return user, nil
}

func TestUsersSuspendReinstateDelegate(t *testing.T) {
	t.Parallel()

	sm := &recordingStateMachine{}
	repo := &users{stateMachine: sm}
	admin := ActorRef{ID: "ops", Type: "admin"}

	u := &User{Active: true}

	got, err := repo.Suspend(context.Background(), admin, u, WithTransitionReason("chargeback"))
	assert.NoError(t, err)
	assert.Equal(t, UserStatusSuspended, got.Status())

	got, err = repo.Reinstate(context.Background(), admin, got)
	assert.NoError(t, err)
	assert.Equal(t, UserStatusActive, got.Status())

	assert.Equal(t, []UserStatus{UserStatusSuspended, UserStatusActive}, sm.targets)
	assert.Equal(t, 1, sm.opts, "transition options are forwarded")
}

func TestUsersSuspendPropagatesMachineError(t *testing.T) {
	t.Parallel()

	boom := errors.New("hook failed")
	repo := &users{stateMachine: &recordingStateMachine{err: boom}}

	_, err := repo.Suspend(context.Background(), ActorRef{}, &User{Active: true})
	assert.ErrorIs(t, err, boom)
}

package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidTransition = "INVALID_USER_STATE_TRANSITION"
	textCodeHookFailed        = "USER_STATE_HOOK_FAILED"
)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid user state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ActorRef identifies who triggered a change.
type ActorRef struct {
	ID   string
	Type string
}

// TransitionContext describes a persisted status change.
type TransitionContext struct {
	Actor  ActorRef
	User   *User
	From   UserStatus
	To     UserStatus
	Reason string
}

// TransitionHook runs after the new status has been stored. The first
// failing hook stops the chain.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionOption customizes a single transition.
type TransitionOption func(*transition)

// WithTransitionReason records why the status changed.
func WithTransitionReason(reason string) TransitionOption {
	return func(t *transition) {
		t.reason = reason
	}
}

// WithAfterTransitionHook adds a hook run once the status is persisted.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(t *transition) {
		if h != nil {
			t.hooks = append(t.hooks, h)
		}
	}
}

// UserStateMachine guards the pending, active and suspended lifecycle.
//
//	pending   -> active
//	active    -> suspended
//	suspended -> active
//
// Nothing returns to pending.
type UserStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error)
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*userStateMachine)

// WithStateMachineClock injects the clock stamped on activity events.
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *userStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink publishes a user.status.changed event per transition.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *userStateMachine) {
		sm.sink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger sets the logger for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *userStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// NewUserStateMachine returns a state machine persisting through users.
func NewUserStateMachine(users Users, opts ...StateMachineOption) UserStateMachine {
	sm := &userStateMachine{
		users:  users,
		now:    time.Now,
		sink:   noopActivitySink{},
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type userStateMachine struct {
	users  Users
	now    func() time.Time
	sink   ActivitySink
	logger Logger
}

type transition struct {
	reason string
	hooks  []TransitionHook
}

func allowedTransition(from, to UserStatus) bool {
	switch from {
	case UserStatusPending:
		return to == UserStatusActive
	case UserStatusActive:
		return to == UserStatusSuspended
	case UserStatusSuspended:
		return to == UserStatusActive
	}
	return false
}

func (sm *userStateMachine) Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error) {
	if user == nil {
		return nil, withMetadata(ErrInvalidTransition, map[string]any{
			"target": target,
			"reason": "user is nil",
		})
	}

	from := user.Status()
	if from == target {
		return user, nil
	}

	if !allowedTransition(from, target) {
		return nil, withMetadata(ErrInvalidTransition, map[string]any{
			"from": from,
			"to":   target,
		})
	}

	t := &transition{}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	updated, err := sm.users.UpdateStatus(ctx, user.ID, target)
	if err != nil {
		return nil, err
	}

	if updated != nil {
		user.Active = updated.Active
		user.Suspended = updated.Suspended
	} else {
		user.applyStatus(target)
	}

	tc := TransitionContext{
		Actor:  actor,
		User:   user,
		From:   from,
		To:     target,
		Reason: t.reason,
	}

	for _, hook := range t.hooks {
		if err := hook(ctx, tc); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user state transition hook failed").
				WithTextCode(textCodeHookFailed).
				WithMetadata(map[string]any{
					"user_id": user.ID.String(),
					"from":    from,
					"to":      target,
				})
		}
	}

	sm.record(ctx, tc)

	return user, nil
}

func (sm *userStateMachine) record(ctx context.Context, tc TransitionContext) {
	actor := tc.Actor
	if actor == (ActorRef{}) {
		actor = ActorRef{Type: "system"}
	}

	var metadata map[string]any
	if tc.Reason != "" {
		metadata = map[string]any{"reason": tc.Reason}
	}

	err := sm.sink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventUserStatusChanged,
		Actor:      actor,
		UserID:     tc.User.ID.String(),
		FromStatus: tc.From,
		ToStatus:   tc.To,
		Metadata:   metadata,
		OccurredAt: sm.now(),
	})
	if err != nil {
		sm.logger.Warn("state machine activity sink error: %v", err)
	}
}

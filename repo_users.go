package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the credential store for user records. Lookups that match no row
// return a repository record-not-found error, see repository.IsRecordNotFound.
//
// Email matching is exact and therefore follows the column collation: BINARY
// on sqlite and the database default on postgres, both case sensitive. Auther
// normalizes emails before calling the store.
type Users interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	FindByActivationToken(ctx context.Context, token string) (*User, error)

	CreateUser(ctx context.Context, user *User) (*User, error)
	CreateUserTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	Activate(ctx context.Context, token string, at time.Time) (*User, error)

	SetActivationToken(ctx context.Context, id uuid.UUID, token string) error
	SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	SetLastAction(ctx context.Context, id uuid.UUID, at time.Time) error

	UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus) (*User, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus) (*User, error)
	Suspend(ctx context.Context, actor ActorRef, user *User, opts ...TransitionOption) (*User, error)
	Reinstate(ctx context.Context, actor ActorRef, user *User, opts ...TransitionOption) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db                  *bun.DB
	stateMachine        UserStateMachine
	stateMachineOptions []StateMachineOption
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

type UsersOption func(*users)

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func WithUsersStateMachineOptions(options ...StateMachineOption) UsersOption {
	return func(u *users) {
		if len(options) == 0 {
			return
		}
		u.stateMachineOptions = append(u.stateMachineOptions, options...)
		u.stateMachine = nil
	}
}

func WithUsersStateMachine(sm UserStateMachine) UsersOption {
	return func(u *users) {
		u.stateMachine = sm
	}
}

func (a *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *users) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	return a.findOne(ctx, tx, "id", id, nil)
}

func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *users) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.findOne(ctx, tx, "email", email, nil)
}

func (a *users) FindByActivationToken(ctx context.Context, token string) (*User, error) {
	return a.findByActivationTokenTx(ctx, a.db, token)
}

func (a *users) findByActivationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	if token == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"activation_token": "<empty>"})
	}
	return a.findOne(ctx, tx, "activation_token", token, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.active = ?", false)
	})
}

func (a *users) findOne(ctx context.Context, tx bun.IDB, column string, value any, apply func(*bun.SelectQuery) *bun.SelectQuery) (*User, error) {
	record := &User{}
	q := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value)

	if apply != nil {
		q = apply(q)
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{column: value})
		}
		return nil, storageError(err, "failed to load user")
	}

	return record, nil
}

func (a *users) CreateUser(ctx context.Context, user *User) (*User, error) {
	return a.CreateUserTx(ctx, a.db, user)
}

func (a *users) CreateUserTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)

	created, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, storageError(err, "failed to create user")
	}

	return created, nil
}

// Activate consumes an activation token. Only inactive users match and the
// token is cleared, so a second call with the same token is not found.
func (a *users) Activate(ctx context.Context, token string, at time.Time) (*User, error) {
	var activated *User

	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := a.findByActivationTokenTx(ctx, tx, token)
		if err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			Model((*User)(nil)).
			Set("active = ?", true).
			Set("activation_token = NULL").
			Set("date_last_action = ?", at).
			Where("id = ?", user.ID).
			Where("active = ?", false).
			Exec(ctx)
		if err != nil {
			return storageError(err, "failed to activate user")
		}

		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": user.ID.String()})
		}

		user.Active = true
		user.ActivationToken = ""
		user.LastActionAt = &at
		activated = user
		return nil
	})

	if err != nil {
		if repository.IsRecordNotFound(err) || IsStorageError(err) {
			return nil, err
		}
		return nil, storageError(err, "activation transaction failed")
	}

	return activated, nil
}

// SetActivationToken replaces the token of a pending user
func (a *users) SetActivationToken(ctx context.Context, id uuid.UUID, token string) error {
	res, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("activation_token = ?", token).
		Where("id = ?", id).
		Where("active = ?", false).
		Exec(ctx)
	if err != nil {
		return storageError(err, "failed to set activation token")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String(), "active": false})
	}
	return nil
}

func (a *users) SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return a.touch(ctx, "date_last_login", id, at)
}

func (a *users) SetLastAction(ctx context.Context, id uuid.UUID, at time.Time) error {
	return a.touch(ctx, "date_last_action", id, at)
}

func (a *users) touch(ctx context.Context, column string, id uuid.UUID, at time.Time) error {
	_, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("? = ?", bun.Ident(column), at).
		Where("id = ?", id).
		Exec(ctx)
	return storageError(err, "failed to update "+column)
}

func (a *users) UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus) (*User, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status)
}

func (a *users) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus) (*User, error) {
	record := &User{ID: id}
	record.applyStatus(status)

	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("active = ?", record.Active).
		Set("suspended = ?", record.Suspended).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, storageError(err, "failed to update user status")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return a.FindByIDTx(ctx, tx, id)
}

func (a *users) Suspend(ctx context.Context, actor ActorRef, user *User, opts ...TransitionOption) (*User, error) {
	return a.lifecycleMachine().Transition(ctx, actor, user, UserStatusSuspended, opts...)
}

func (a *users) Reinstate(ctx context.Context, actor ActorRef, user *User, opts ...TransitionOption) (*User, error) {
	return a.lifecycleMachine().Transition(ctx, actor, user, UserStatusActive, opts...)
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CreatedAt == nil {
		now := time.Now().UTC()
		record.CreatedAt = &now
	}
}

func (a *users) lifecycleMachine() UserStateMachine {
	if a.stateMachine == nil {
		a.stateMachine = NewUserStateMachine(a, a.stateMachineOptions...)
	}
	return a.stateMachine
}

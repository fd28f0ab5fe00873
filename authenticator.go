package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

const activationTokenBytes = 32

// Auther resolves who is logged in for a request and runs the account
// flows: login, logout, sign up, activation and suspension.
//
// It keeps no per-request state. Every call receives the request context,
// the cookie jar and the session explicitly and returns a Principal value.
type Auther struct {
	repo         RepositoryManager
	users        Users
	cfg          Config
	hasher       PasswordHasher
	tokens       *PersistentTokens
	verifier     *CredentialVerifier
	logger       Logger
	activitySink ActivitySink
	notifier     ActivationNotifier
	namespace    string
	timeout      time.Duration
	now          func() time.Time
	random       io.Reader

	concealAccountState bool
	deterministicIDs    bool
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, cfg Config) *Auther {
	s := &Auther{
		repo:         repo,
		users:        repo.Users(),
		cfg:          cfg,
		hasher:       NewBcryptHasher(cfg.GetHashCost()),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		notifier:     noopNotifier{},
		namespace:    cfg.GetSessionNamespace(),
		timeout:      cfg.GetOperationTimeout(),
		now:          time.Now,
		random:       rand.Reader,
	}
	s.rebuild()
	return s
}

func (s *Auther) rebuild() {
	s.tokens = NewPersistentTokens(s.repo.PersistentLogins(), s.cfg,
		WithTokenClock(s.now),
		WithTokenRandom(s.random),
		WithTokenLogger(s.logger),
	)
	s.verifier = NewCredentialVerifier(s.users, s.hasher, s.cfg.GetHashCost()).
		ConcealAccountState(s.concealAccountState)
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger == nil {
		return s
	}
	s.logger = logger
	s.rebuild()
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithNotifier sets the collaborator that delivers activation links.
func (s *Auther) WithNotifier(notifier ActivationNotifier) *Auther {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	s.notifier = notifier
	return s
}

// WithHasher replaces the bcrypt hasher.
func (s *Auther) WithHasher(hasher PasswordHasher) *Auther {
	if hasher == nil {
		return s
	}
	s.hasher = hasher
	s.rebuild()
	return s
}

// WithClock injects the time source used for expiry and timestamps.
func (s *Auther) WithClock(clock func() time.Time) *Auther {
	if clock == nil {
		return s
	}
	s.now = clock
	s.rebuild()
	return s
}

// WithRandom injects the entropy source for tokens.
func (s *Auther) WithRandom(r io.Reader) *Auther {
	if r == nil {
		return s
	}
	s.random = r
	s.rebuild()
	return s
}

// WithConcealAccountState makes Login report inactive and suspended accounts
// as ErrInvalidCredentials, so callers cannot tell them from unknown emails.
func (s *Auther) WithConcealAccountState(conceal bool) *Auther {
	s.concealAccountState = conceal
	s.rebuild()
	return s
}

// WithDeterministicUserIDs derives new user ids from the email with hashid.
func (s *Auther) WithDeterministicUserIDs(enabled bool) *Auther {
	s.deterministicIDs = enabled
	return s
}

// PersistentTokens exposes the remember-me token manager.
func (s *Auther) PersistentTokens() *PersistentTokens {
	return s.tokens
}

// Bootstrap resolves the principal for a request. A valid remember-me cookie
// wins and the session is not consulted; otherwise the session identity is
// re-validated against the store. Only storage and session failures are
// returned as errors; everything else resolves to Anonymous.
func (s *Auther) Bootstrap(ctx context.Context, rc RequestContext, sess SessionStore) (Principal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	s.sweep(ctx)

	principal, resolved, err := s.loginPersistent(ctx, rc, sess)
	if err != nil || resolved {
		return principal, err
	}

	return s.resolveSession(ctx, sess)
}

// loginPersistent reports resolved=true when the cookie decided the outcome,
// including a gated-out user whose cookie was revoked.
func (s *Auther) loginPersistent(ctx context.Context, rc RequestContext, sess SessionStore) (Principal, bool, error) {
	cookie, err := s.tokens.FromRequest(ctx, rc)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoPersistentCookie):
		return Anonymous, false, nil
	case IsPersistentCookieError(err):
		s.logger.Debug("persistent login rejected", "error", err)
		s.emitAuthEvent(ctx, ActivityEventPersistentRejected, ActorRef{Type: "anonymous"}, "", map[string]any{
			"error": err.Error(),
		})
		return Anonymous, false, nil
	default:
		s.logger.Error("persistent login lookup failed", "error", err)
		return Anonymous, false, err
	}

	user, err := s.users.FindByID(ctx, cookie.UserID)
	if err != nil && !repository.IsRecordNotFound(err) {
		return Anonymous, false, err
	}

	if !user.IsAuthenticable() {
		s.logger.Warn("persistent login for unauthenticable user", "user_id", cookie.UserID, "status", user.Status())
		if err := s.tokens.Revoke(ctx, rc, cookie.UserID); err != nil {
			s.logger.Error("failed to revoke persistent login", "user_id", cookie.UserID, "error", err)
		}
		s.emitAuthEvent(ctx, ActivityEventPersistentRejected, userActor(cookie.UserID), cookie.UserID.String(), map[string]any{
			"status": user.Status(),
		})
		return Anonymous, true, nil
	}

	if _, err := s.tokens.Rotate(ctx, rc, user.ID, cookie.Token); err != nil {
		if errors.Is(err, ErrTokenExpiredOrUnknown) {
			// a concurrent request with the same cookie rotated it first
			s.logger.Debug("persistent login already rotated", "user_id", user.ID)
			return Anonymous, false, nil
		}
		return Anonymous, false, err
	}

	if sess != nil {
		if err := sess.Set(ctx, s.namespace, user.ID.String()); err != nil {
			return Anonymous, false, err
		}
	}

	s.touchLastAction(ctx, user.ID)

	s.emitAuthEvent(ctx, ActivityEventPersistentLogin, userActor(user.ID), user.ID.String(), nil)
	s.emitAuthEvent(ctx, ActivityEventTokenRotated, userActor(user.ID), user.ID.String(), nil)

	return principalFor(user, AuthMethodCookie), true, nil
}

func (s *Auther) resolveSession(ctx context.Context, sess SessionStore) (Principal, error) {
	if sess == nil {
		return Anonymous, nil
	}

	raw, ok, err := sess.Get(ctx, s.namespace)
	if err != nil {
		return Anonymous, err
	}
	if !ok || raw == "" {
		return Anonymous, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		s.clearStaleSession(ctx, sess, raw, "unparsable user id")
		return Anonymous, nil
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.clearStaleSession(ctx, sess, raw, "user not found")
			return Anonymous, nil
		}
		return Anonymous, err
	}

	if !user.IsAuthenticable() {
		s.clearStaleSession(ctx, sess, raw, string(user.Status()))
		return Anonymous, nil
	}

	s.touchLastAction(ctx, user.ID)

	return principalFor(user, AuthMethodSession), nil
}

func (s *Auther) clearStaleSession(ctx context.Context, sess SessionStore, value, reason string) {
	s.logger.Debug("clearing stale session identity", "value", value, "reason", reason)
	if err := sess.Delete(ctx, s.namespace); err != nil {
		s.logger.Error("failed to clear stale session identity", "error", err)
	}
}

// Login verifies the credentials, gates on account state and establishes
// the session identity. With remember set a persistent token is issued too.
func (s *Auther) Login(ctx context.Context, rc RequestContext, sess SessionStore, email, password string, remember bool) (uuid.UUID, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	email = normalizeEmail(email)

	if err := (LoginRequest{Email: email, Password: password}).Validate(); err != nil {
		s.logger.Debug("Login payload rejected", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email": email,
			"error": ErrInvalidCredentials.Error(),
		})
		return uuid.Nil, ErrInvalidCredentials
	}

	user, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		if IsStorageError(err) {
			s.logger.Error("Login verify identity error", "error", err)
			return uuid.Nil, err
		}

		s.logger.Warn("Login rejected", "email", email, "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return uuid.Nil, err
	}

	if err := s.users.SetLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		s.logger.Error("failed to stamp last login", "user_id", user.ID, "error", err)
	}

	if renewer, ok := sess.(SessionRenewer); ok {
		if err := renewer.Renew(ctx); err != nil {
			return uuid.Nil, err
		}
	}

	if err := sess.Set(ctx, s.namespace, user.ID.String()); err != nil {
		return uuid.Nil, err
	}

	if remember {
		if _, err := s.tokens.Issue(ctx, rc, user.ID); err != nil {
			s.logger.Error("failed to issue persistent login", "user_id", user.ID, "error", err)
		} else {
			s.emitAuthEvent(ctx, ActivityEventTokenIssued, userActor(user.ID), user.ID.String(), nil)
		}
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, userActor(user.ID), user.ID.String(), map[string]any{
		"remember": remember,
	})

	return user.ID, nil
}

// Logout clears the session identity, destroys the session and revokes the
// persistent login presented by the request.
func (s *Auther) Logout(ctx context.Context, rc RequestContext, sess SessionStore) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	userID := s.logoutSubject(ctx, rc, sess)

	var errs []error
	if sess != nil {
		if err := sess.Delete(ctx, s.namespace); err != nil {
			errs = append(errs, err)
		}
		if err := sess.Destroy(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.tokens.Revoke(ctx, rc, userID); err != nil {
		errs = append(errs, err)
	}

	if userID != uuid.Nil {
		s.emitAuthEvent(ctx, ActivityEventLogout, userActor(userID), userID.String(), nil)
	}

	return errors.Join(errs...)
}

// logoutSubject finds the user being logged out: the request principal, then
// the session identity, then the cookie owner.
func (s *Auther) logoutSubject(ctx context.Context, rc RequestContext, sess SessionStore) uuid.UUID {
	if p, ok := PrincipalFromContext(ctx); ok && p.IsAuthenticated() {
		return p.UserID
	}

	if sess != nil {
		if raw, ok, err := sess.Get(ctx, s.namespace); err == nil && ok {
			if id, err := uuid.Parse(raw); err == nil {
				return id
			}
		}
	}

	if id, _, err := parseCookieValue(rc.Cookies(s.tokens.CookieName())); err == nil {
		return id
	}

	return uuid.Nil
}

// SignUp creates an inactive user with a fresh activation token and hands the
// token to the ActivationNotifier.
func (s *Auther) SignUp(ctx context.Context, email, password, firstName, lastName string) (*User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req := SignUpRequest{
		Email:     normalizeEmail(email),
		Password:  password,
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
	}

	if err := req.Validate(); err != nil {
		return nil, withMetadata(ErrInvalidSignUp, map[string]any{
			"validation": err.Error(),
		})
	}

	existing, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if goerrors.IsValidation(err) {
			return nil, withMetadata(ErrInvalidSignUp, map[string]any{
				"validation": err.Error(),
			})
		}
		return nil, err
	}

	token, err := s.activationToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	record := &User{
		Email:           req.Email,
		PasswordHash:    hash,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		ActivationToken: token,
		CreatedAt:       &now,
	}

	if s.deterministicIDs {
		id, err := hashid.NewUUID(req.Email)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive user id")
		}
		record.ID = id
	}

	user, err := s.users.CreateUser(ctx, record)
	if err != nil {
		return nil, err
	}

	if err := s.notifier.SendActivation(ctx, user, token); err != nil {
		s.logger.Error("failed to send activation", "user_id", user.ID, "error", err)
	}

	s.emitAuthEvent(ctx, ActivityEventSignUp, userActor(user.ID), user.ID.String(), map[string]any{
		"email": user.Email,
	})

	return user, nil
}

// SendActivation issues a new activation token for a pending user and hands
// it to the ActivationNotifier.
func (s *Auther) SendActivation(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.Status() != UserStatusPending {
		return withMetadata(ErrInvalidTransition, map[string]any{
			"from":   user.Status(),
			"reason": "user is already activated",
		})
	}

	token, err := s.activationToken()
	if err != nil {
		return err
	}

	if err := s.users.SetActivationToken(ctx, user.ID, token); err != nil {
		return err
	}
	user.ActivationToken = token

	return s.notifier.SendActivation(ctx, user, token)
}

// Activate consumes an activation token. The same token never works twice.
func (s *Auther) Activate(ctx context.Context, token string) (uuid.UUID, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	token = strings.TrimSpace(token)
	if token == "" {
		return uuid.Nil, ErrActivationTokenInvalid
	}

	user, err := s.users.Activate(ctx, token, s.now().UTC())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return uuid.Nil, ErrActivationTokenInvalid
		}
		return uuid.Nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventActivated, userActor(user.ID), user.ID.String(), nil)
	s.emitAuthEvent(ctx, ActivityEventUserStatusChanged, userActor(user.ID), user.ID.String(), map[string]any{
		"from": UserStatusPending,
		"to":   UserStatusActive,
	})

	return user.ID, nil
}

// Suspend moves an active user to suspended and deletes every persistent
// login the user holds.
func (s *Auther) Suspend(ctx context.Context, actor ActorRef, userID uuid.UUID, opts ...TransitionOption) (*User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	opts = append(opts,
		WithAfterTransitionHook(func(ctx context.Context, tc TransitionContext) error {
			n, err := s.tokens.RevokeAll(ctx, tc.User.ID)
			if err != nil {
				return err
			}
			s.logger.Info("revoked persistent logins on suspension", "user_id", tc.User.ID, "count", n)
			return nil
		}),
		WithAfterTransitionHook(s.statusChangedHook(actor)),
	)

	return s.users.Suspend(ctx, actor, user, opts...)
}

// Reinstate moves a suspended user back to active.
func (s *Auther) Reinstate(ctx context.Context, actor ActorRef, userID uuid.UUID, opts ...TransitionOption) (*User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	opts = append(opts, WithAfterTransitionHook(s.statusChangedHook(actor)))

	return s.users.Reinstate(ctx, actor, user, opts...)
}

func (s *Auther) statusChangedHook(actor ActorRef) TransitionHook {
	return func(ctx context.Context, tc TransitionContext) error {
		metadata := map[string]any{"from": tc.From, "to": tc.To}
		if tc.Reason != "" {
			metadata["reason"] = tc.Reason
		}
		s.emitAuthEvent(ctx, ActivityEventUserStatusChanged, actor, tc.User.ID.String(), metadata)
		return nil
	}
}

// Sweep deletes expired persistent logins and reports how many were removed.
func (s *Auther) Sweep(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.tokens.Sweep(ctx, s.now())
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.emitAuthEvent(ctx, ActivityEventTokensSwept, ActorRef{Type: "system"}, "", map[string]any{
			"count": n,
		})
	}
	return n, nil
}

// sweep is the best effort variant run on every bootstrap
func (s *Auther) sweep(ctx context.Context) {
	n, err := s.tokens.Sweep(ctx, s.now())
	if err != nil {
		s.logger.Error("persistent login sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.emitAuthEvent(ctx, ActivityEventTokensSwept, ActorRef{Type: "system"}, "", map[string]any{
			"count": n,
		})
	}
}

func (s *Auther) touchLastAction(ctx context.Context, id uuid.UUID) {
	if err := s.users.SetLastAction(ctx, id, s.now().UTC()); err != nil {
		s.logger.Error("failed to stamp last action", "user_id", id, "error", err)
	}
}

func (s *Auther) activationToken() (string, error) {
	buf := make([]byte, activationTokenBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("read activation token entropy: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *Auther) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}

	if err := normalizeActivitySink(s.activitySink).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error", "event", eventType, "error", err)
	}
}

func userActor(id uuid.UUID) ActorRef {
	return ActorRef{ID: id.String(), Type: "user"}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

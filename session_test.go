package auth

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-session-auth/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionManagerDefaultsToMemory(t *testing.T) {
	mgr, err := NewSessionManager(context.Background(), SessionOptions{CookieName: "sid", TTLSeconds: 60}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sid", mgr.CookieName())
}

func TestNewSessionManagerBadRedisURL(t *testing.T) {
	_, err := NewSessionManager(context.Background(), SessionOptions{RedisURL: "not a url"}, nil)
	require.Error(t, err)
	assert.True(t, IsStorageError(err))
}

// The full browser round trip: login with remember-me, a request with the
// session cookie, then a new browser session carrying only the
// remember-me cookie.
func TestManagedSessionsWithAuther(t *testing.T) {
	ctx := context.Background()
	auther, repo, clock := newTestAuther(t)
	user := seedUser(t, repo, "ada@example.com", "correct-horse", UserStatusActive)

	mgr := sessions.NewManager(sessions.NewMemoryBackend().WithClock(clock.Now),
		sessions.WithClock(clock.Now),
		sessions.WithTTL(time.Hour),
	)
	provider := ManagedSessions(mgr)

	rc := newFakeRequest(testUserAgent)
	sess, err := provider.Start(ctx, rc)
	require.NoError(t, err)

	_, err = auther.Login(ctx, rc, sess, "ada@example.com", "correct-horse", true)
	require.NoError(t, err)
	require.NotEmpty(t, rc.Cookies(sessions.DefaultCookieName))

	next := rc.next()
	sess, err = provider.Start(ctx, next)
	require.NoError(t, err)

	p, err := auther.Bootstrap(ctx, next, sess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)
	assert.Equal(t, AuthMethodCookie, p.Method, "a valid remember-me cookie wins")

	// the session outlives its TTL; only the remember-me cookie is left
	clock.Advance(2 * time.Hour)
	later := next.next()
	sess, err = provider.Start(ctx, later)
	require.NoError(t, err)

	v, ok, err := sess.Get(ctx, DefaultSessionNamespace)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)

	p, err = auther.Bootstrap(ctx, later, sess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)
	assert.Equal(t, AuthMethodCookie, p.Method)

	// after logout nothing resolves
	require.NoError(t, auther.Logout(ctx, later, sess))

	final := later.next()
	sess, err = provider.Start(ctx, final)
	require.NoError(t, err)

	p, err = auther.Bootstrap(ctx, final, sess)
	require.NoError(t, err)
	assert.Equal(t, Anonymous, p)
}

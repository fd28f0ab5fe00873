package sessions

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jar struct {
	cookies map[string]string
	set     []*router.Cookie
}

func newJar() *jar {
	return &jar{cookies: map[string]string{}}
}

func (j *jar) Cookies(key string, defaultValue ...string) string {
	if v, ok := j.cookies[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (j *jar) Cookie(c *router.Cookie) {
	j.set = append(j.set, c)
	if c.Value == "" {
		delete(j.cookies, c.Name)
		return
	}
	j.cookies[c.Name] = c.Value
}

func (j *jar) last() *router.Cookie {
	if len(j.set) == 0 {
		return nil
	}
	return j.set[len(j.set)-1]
}

func newTestManager() (*Manager, *MemoryBackend, *time.Time) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	backend := NewMemoryBackend().WithClock(clock)
	mgr := NewManager(backend, WithClock(clock), WithTTL(time.Hour))
	return mgr, backend, &now
}

func TestManagerLazySessionID(t *testing.T) {
	ctx := context.Background()
	mgr, backend, _ := newTestManager()
	j := newJar()

	sess, err := mgr.Start(ctx, j)
	require.NoError(t, err)
	assert.Empty(t, sess.ID())

	_, ok, err := sess.Get(ctx, "user")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, sess.Delete(ctx, "user"))
	assert.Empty(t, j.set, "reads and no-op deletes do not set a cookie")
	assert.Zero(t, backend.Len())

	require.NoError(t, sess.Set(ctx, "user", "42"))
	assert.NotEmpty(t, sess.ID())
	assert.Equal(t, sess.ID(), j.cookies[DefaultCookieName])
	assert.Equal(t, 1, backend.Len())
}

func TestManagerCookieAttributes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mgr := NewManager(NewMemoryBackend(),
		WithCookieName("sid"),
		WithTTL(30*time.Minute),
		WithSecure(true),
		WithDomain("example.com"),
		WithClock(func() time.Time { return now }),
	)
	j := newJar()

	sess, err := mgr.Start(ctx, j)
	require.NoError(t, err)
	require.NoError(t, sess.Set(ctx, "k", "v"))

	c := j.last()
	require.NotNil(t, c)
	assert.Equal(t, "sid", c.Name)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, "example.com", c.Domain)
	assert.True(t, c.Secure)
	assert.True(t, c.HTTPOnly)
	assert.Equal(t, "Lax", c.SameSite)
	assert.Equal(t, now.Add(30*time.Minute), c.Expires)
}

func TestManagerRestoresSession(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager()
	j := newJar()

	sess, err := mgr.Start(ctx, j)
	require.NoError(t, err)
	require.NoError(t, sess.Set(ctx, "user", "42"))

	again, err := mgr.Start(ctx, j)
	require.NoError(t, err)
	assert.Equal(t, sess.ID(), again.ID())

	v, ok, err := again.Get(ctx, "user")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", v)
}

func TestManagerUnknownCookieGivesEmptySession(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager()
	j := newJar()
	j.cookies[DefaultCookieName] = "forged-or-expired"

	sess, err := mgr.Start(ctx, j)
	require.NoError(t, err)
	assert.Empty(t, sess.ID())

	require.NoError(t, sess.Set(ctx, "user", "42"))
	assert.NotEqual(t, "forged-or-expired", sess.ID(), "client supplied ids are never adopted")
}

func TestManagerSessionExpires(t *testing.T) {
	ctx := context.Background()
	mgr, _, now := newTestManager()
	j := newJar()

	sess, err := mgr.Start(ctx, j)
	require.NoError(t, err)
	require.NoError(t, sess.Set(ctx, "user", "42"))

	*now = now.Add(time.Hour)

	again, err := mgr.Start(ctx, j)
	require.NoError(t, err)
	_, ok, err := again.Get(ctx, "user")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionRenew(t *testing.T) {
	ctx := context.Background()
	mgr, backend, _ := newTestManager()
	j := newJar()

	sess, err := mgr.Start(ctx, j)
	require.NoError(t, err)
	require.NoError(t, sess.Set(ctx, "user", "42"))
	old := sess.ID()

	require.NoError(t, sess.Renew(ctx))
	assert.NotEqual(t, old, sess.ID())
	assert.Equal(t, sess.ID(), j.cookies[DefaultCookieName])
	assert.Equal(t, 1, backend.Len(), "the old id is dropped")

	_, found, err := backend.Load(ctx, storageKey(old))
	require.NoError(t, err)
	assert.False(t, found)

	v, ok, err := sess.Get(ctx, "user")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", v)
}

func TestSessionRenewEmpty(t *testing.T) {
	ctx := context.Background()
	mgr, backend, _ := newTestManager()
	j := newJar()

	sess, err := mgr.Start(ctx, j)
	require.NoError(t, err)
	require.NoError(t, sess.Renew(ctx))

	assert.NotEmpty(t, sess.ID())
	assert.Zero(t, backend.Len())
	assert.Empty(t, j.set)
}

func TestSessionDestroy(t *testing.T) {
	ctx := context.Background()
	mgr, backend, now := newTestManager()
	j := newJar()

	sess, err := mgr.Start(ctx, j)
	require.NoError(t, err)
	require.NoError(t, sess.Set(ctx, "user", "42"))

	require.NoError(t, sess.Destroy(ctx))
	assert.Empty(t, sess.ID())
	assert.Zero(t, backend.Len())

	c := j.last()
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
	assert.True(t, c.Expires.Before(*now))
	assert.NotContains(t, j.cookies, DefaultCookieName)
}

func TestStorageKeyHidesSessionID(t *testing.T) {
	key := storageKey("abc")
	assert.Len(t, key, 64)
	assert.NotContains(t, key, "abc")
	assert.Equal(t, key, storageKey("abc"))
	assert.NotEqual(t, key, storageKey("abd"))
}

func TestNewIDUsesEntropySource(t *testing.T) {
	mgr := NewManager(NewMemoryBackend(), WithRandom(bytes.NewReader(make([]byte, sessionIDBytes))))

	id, err := mgr.newID()
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", id)

	_, err = mgr.newID()
	assert.Error(t, err, "exhausted entropy is an error")
}

func TestManagerSlidesIdleExpiry(t *testing.T) {
	ctx := context.Background()
	mgr, _, now := newTestManager()
	j := newJar()

	sess, err := mgr.Start(ctx, j)
	require.NoError(t, err)
	require.NoError(t, sess.Set(ctx, "user", "42"))

	// active every 45 minutes for three hours with a one hour TTL
	for i := 0; i < 4; i++ {
		*now = now.Add(45 * time.Minute)

		again, err := mgr.Start(ctx, j)
		require.NoError(t, err)
		v, ok, err := again.Get(ctx, "user")
		require.NoError(t, err)
		require.True(t, ok, "request %d", i)
		assert.Equal(t, "42", v)
		assert.Equal(t, now.Add(time.Hour), j.last().Expires, "cookie follows the backend expiry")
	}

	*now = now.Add(time.Hour)

	idle, err := mgr.Start(ctx, j)
	require.NoError(t, err)
	_, ok, err := idle.Get(ctx, "user")
	require.NoError(t, err)
	assert.False(t, ok)
}

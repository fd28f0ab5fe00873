package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-session-auth/sessions"
)

var (
	_ SessionStore   = (*sessions.Session)(nil)
	_ SessionRenewer = (*sessions.Session)(nil)
)

// NewSessionManager builds the session manager described by opts. A Redis
// URL selects the Redis backend, otherwise sessions live in memory.
func NewSessionManager(ctx context.Context, opts SessionOptions, logger Logger) (*sessions.Manager, error) {
	var backend sessions.Backend = sessions.NewMemoryBackend()

	if opts.RedisURL != "" {
		rb, err := sessions.NewRedisBackendFromURL(ctx, opts.RedisURL, sessions.DefaultRedisPrefix)
		if err != nil {
			return nil, storageError(err, "failed to open session backend")
		}
		backend = rb
	}

	if logger == nil {
		logger = defLogger{}
	}

	return sessions.NewManager(backend,
		sessions.WithCookieName(opts.CookieName),
		sessions.WithTTL(time.Duration(opts.TTLSeconds)*time.Second),
		sessions.WithSecure(opts.Secure),
		sessions.WithLogger(logger),
	), nil
}

// ManagedSessions adapts a sessions.Manager to SessionProvider
func ManagedSessions(mgr *sessions.Manager) SessionProvider {
	return SessionProviderFunc(func(ctx context.Context, rc RequestContext) (SessionStore, error) {
		sess, err := mgr.Start(ctx, rc)
		if err != nil {
			return nil, err
		}
		return sess, nil
	})
}

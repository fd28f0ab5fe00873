// Package auth provides session based authentication with an optional
// long lived "remember me" login layered on top of short lived server
// sessions.
//
// Request lifecycle:
//   - Auther.Bootstrap runs once per request. It sweeps expired persistent
//     logins, then checks the remember-me cookie. A valid cookie logs the
//     user in, rotates the token and skips the session entirely. Otherwise
//     the user id stored in the session namespace is re-validated against
//     the Users repository.
//   - The resolved identity is returned as an immutable Principal and can be
//     carried in the request context with WithPrincipal.
//
// Persistent logins:
//   - The cookie value is "<user id>-<token>". The token is two fixed length
//     HMAC-SHA256 digests: a random component and a component bound to the
//     client user agent. Only the HMAC of the full token is persisted.
//   - Tokens rotate on every cookie based login inside a transaction, so a
//     replayed cookie can produce at most one successor.
//
// User lifecycle:
//   - Users are created inactive with an activation token. Activation
//     consumes the token. Suspension is managed through UserStateMachine and
//     revokes all persistent logins of the user.
//
// HTTP:
//   - Auther.Middleware bootstraps every request and stores the Principal.
//     AuthController serves the login, logout, sign up and activation forms;
//     middleware/csrf protects them with a session bound token.
//
// Activity sinks:
//   - ActivitySink receives best-effort audit events (errors are logged).
//     MetricsSink forwards them to Prometheus counters.
package auth

// Package sessions provides cookie identified server side sessions.
//
// The cookie carries a random session id. Backends only ever see a SHA-256
// digest of that id, so a leaked backend does not leak live cookies.
// Session data is a flat string map persisted through a Backend: an in
// memory map for tests and single node setups, or Redis.
package sessions

// Package session binds users to devices through persisted session records,
// each owning exactly one refresh token.
//
// # Lookup precedence
//
// [Adapter.FindOrCreate] reuses an existing session before creating one:
// first the session whose refresh token the caller presented, then the
// session matching the (user, IP, user-agent) fingerprint. Concurrent
// callers converge on a single row because the store enforces uniqueness
// of the fingerprint and of the refresh-token digest, and rotation is a
// conditional write on the previous digest.
//
// # Architecture boundaries
//
// This package owns session lifecycle rules. It does NOT mint tokens; the
// caller supplies an [IssueFunc] so the access token can carry the session
// id. Refresh tokens are persisted only as SHA-256 digests.
//
// # What this package must NOT do
//
//   - Import goSessionAuth or jwt (no upward imports).
//   - Decide whether a missing session is fatal; lookups return (nil, nil).
package session

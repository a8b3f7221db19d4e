// Package goSessionAuth provides a session-based authentication engine with
// short-lived JWT access tokens, rotating refresh tokens bound to persisted
// sessions, email verification, email-code two-factor authentication and
// Google sign-in.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goSessionAuth is the public surface. It exposes [Engine], [Builder],
// [Config], the classified [Error] values and the view types returned by the
// flows. Persistence sits behind the store package, email delivery behind
// mail, and the HTTP surface (routes, cookies, status codes) lives in httpapi
// and middleware, which depend on this package and never the other way round.
//
// # Sessions
//
// Every refresh token is tied to one session row keyed by the client's IP
// and user-agent. Logging in again from the same device reuses that session;
// a refresh rotates the stored token hash with a compare-and-set, so of two
// concurrent refreshes of the same token only one succeeds. Access tokens are
// checked against their session on every [Engine.Authenticate] call, which is
// what makes logout immediate.
//
// # Errors
//
// Engine methods return *Error sentinels or a *ValidationError. Use [KindOf]
// to map an error to a transport status without matching on messages.
package goSessionAuth

// Package middleware exposes the HTTP adapters placed in front of
// goSessionAuth.Engine: the access-token guard, per-IP rate limiting, client
// metadata capture and request logging.
//
// # Guards
//
//   - [RequireAuth] extracts the access token (cookie, Bearer header,
//     x-access-token header, then query parameter), calls
//     Engine.Authenticate and injects the [goSessionAuth.Identity] into the
//     request context.
//   - [RateLimit] spends one unit of a per-IP budget and rejects with 429
//     once it is exhausted. Limiter outages fail open.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; all decisions are delegated to
// the Engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Refresh tokens implicitly; refresh is a separate client call.
//   - Make authorization decisions beyond pass/reject from Engine.Authenticate.
package middleware

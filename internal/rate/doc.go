// Package rate provides the per-key request budgets placed in front of the
// public authentication endpoints.
//
// # Window semantics
//
// [RedisLimiter] keeps fixed-window counters shared by every instance:
// INCR plus EXPIRE on the first hit of a window. Keys are
// "<prefix>:<scope>:<key>". [LocalLimiter] is an in-process token bucket
// used when no Redis is configured; its budget is per instance.
//
// # What this package must NOT do
//
//   - Decide which endpoints are limited (that lives in middleware wiring).
//   - Be imported outside the goSessionAuth module.
package rate

// Package store defines the persistence collaborator used by the engine:
// record types for users, sessions, refresh tokens, two-factor codes and
// single-use email tokens, and the repository interfaces over them.
//
// Implementations live in subpackages: store/memory for tests and local
// runs, store/postgres for production.
package store

// Package internal holds helpers shared by the engine and its components:
// random token and code generation and token digests.
package internal

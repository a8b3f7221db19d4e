// Package jwt issues and verifies the signed access and refresh tokens of a
// session. Access and refresh tokens are signed with distinct HS256 secrets
// and verification distinguishes an expired token from an invalid one.
package jwt

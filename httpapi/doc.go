// Package httpapi is the HTTP adapter over goSessionAuth.Engine: chi routes
// under /api/v1, the JSON envelope, error-kind to status mapping and the
// cookie or header token transport chosen by the device classifier.
package httpapi

// Package common defines the sentinel errors shared by adapters, repositories
// and the HTTP layer. Callers match them with errors.Is.
package common

import "errors"

var (
	// Auth errors: missing, malformed or expired credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// Repository errors.
	ErrConflict = errors.New("already exists")
	ErrNotFound = errors.New("not found")

	// Input and detection errors.
	ErrBadInput             = errors.New("invalid input")
	ErrDetectionUnavailable = errors.New("detection unavailable")
)

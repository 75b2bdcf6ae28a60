package repository

import "errors"

// Repository errors
var (
	// ErrUnscoped indicates an owner-scoped query was issued without an owner.
	ErrUnscoped = errors.New("query requires an owner scope")

	// ErrUnknownDriver indicates the configured database driver is not supported.
	ErrUnknownDriver = errors.New("unknown database driver")

	// ErrMalformedTokenHash indicates a token hash is not hex-encoded SHA-256.
	ErrMalformedTokenHash = errors.New("malformed token hash")
)

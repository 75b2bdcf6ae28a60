package auth

import (
	"errors"
	"net/http"
)

// Authentication errors. The messages are returned to clients verbatim.
var (
	// ErrMissingCredentials indicates the request carried no token.
	ErrMissingCredentials = errors.New("Authentication credentials were not provided.")

	// ErrEmptyToken indicates a token scheme with no key after it.
	ErrEmptyToken = errors.New("Invalid token header. No credentials provided.")

	// ErrTokenHasSpaces indicates a key containing whitespace.
	ErrTokenHasSpaces = errors.New("Invalid token header. Token string should not contain spaces.")

	// ErrInvalidToken indicates a key that does not resolve to a user.
	ErrInvalidToken = errors.New("Invalid token.")

	// ErrInactiveUser indicates the token's owner is deactivated.
	ErrInactiveUser = errors.New("User inactive or deleted.")

	// ErrServer indicates the token could not be resolved due to a backend failure.
	ErrServer = errors.New("A server error occurred.")
)

// AuthError is an authentication failure ready to be written to a client.
type AuthError struct {
	// Err is one of the errors above.
	Err error

	// HTTPStatus is the HTTP status code.
	HTTPStatus int
}

// NewAuthError wraps err with its HTTP status.
func NewAuthError(err error) *AuthError {
	status := http.StatusUnauthorized
	if errors.Is(err, ErrServer) {
		status = http.StatusInternalServerError
	}
	return &AuthError{Err: err, HTTPStatus: status}
}

func (e *AuthError) Error() string {
	return e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Package service provides the business logic of the pantry API.
package service

import (
	"errors"

	"github.com/prn-tf/pantry/internal/domain"
)

// Common service errors.
var (
	// User errors
	ErrUserNotFound       = domain.ErrUserNotFound
	ErrUserInactive       = domain.ErrUserInactive
	ErrInvalidCredentials = domain.ErrInvalidCredentials

	// Token errors
	ErrInvalidToken = domain.ErrTokenNotFound

	// Recipe errors
	ErrRecipeNotFound = domain.ErrRecipeNotFound
	ErrImageTooLarge  = errors.New("image exceeds the maximum upload size")

	// General errors
	ErrInternalError = errors.New("internal server error")
)

// Package domain contains the core business entities for the pantry API.
package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserInactive indicates the user account is disabled.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ===========================================
	// Token Errors
	// ===========================================

	// ErrTokenNotFound indicates no user owns the presented token.
	ErrTokenNotFound = errors.New("token not found")

	// ===========================================
	// Recipe Errors
	// ===========================================

	// ErrRecipeNotFound indicates the recipe does not exist or is owned by someone else.
	ErrRecipeNotFound = errors.New("recipe not found")

	// ErrInvalidImage indicates an upload could not be decoded as an image.
	ErrInvalidImage = errors.New("invalid image")
)

// Field names used in validation errors that do not belong to a single input field.
const (
	NonFieldErrors = "non_field_errors"
)

// Validation messages shared between the domain and the HTTP layer.
const (
	MsgRequired       = "This field is required."
	MsgBlank          = "This field may not be blank."
	MsgNull           = "This field may not be null."
	MsgInvalidEmail   = "Enter a valid email address."
	MsgEmailTaken     = "user with this email already exists."
	MsgInvalidInteger = "A valid integer is required."
	MsgInvalidNumber  = "A valid number is required."
	MsgInvalidString  = "Not a valid string."
	MsgInvalidList    = "Expected a list of items but got type \"%s\"."
	MsgInvalidPK      = "Invalid pk \"%v\" - object does not exist."
	MsgIncorrectPK    = "Incorrect type. Expected pk value, received %s."
	MsgMinLength      = "Ensure this field has at least %d characters."
	MsgMaxLength      = "Ensure this field has no more than %d characters."
	MsgMinValue       = "Ensure this value is greater than or equal to %d."
	MsgMaxDigits      = "Ensure that there are no more than %d digits in total."
	MsgMaxDecimals    = "Ensure that there are no more than %d decimal places."
	MsgMaxWhole       = "Ensure that there are no more than %d digits before the decimal point."
	MsgBadCredentials = "Unable to log in with provided credentials."
	MsgInvalidImage   = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
	MsgNoFile         = "No file was submitted."
)

// ValidationError collects per-field validation messages.
// It renders as {"field": ["message", ...]} at the HTTP boundary.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError creates a ValidationError holding a single message.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// Add appends a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Merge copies every message of other into e.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for field, msgs := range other.Fields {
		for _, msg := range msgs {
			e.Add(field, msg)
		}
	}
}

// Has reports whether field has at least one message.
func (e *ValidationError) Has(field string) bool {
	return len(e.Fields[field]) > 0
}

// Empty reports whether no message was recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// ErrOrNil returns e as an error, or nil when it holds no messages.
func (e *ValidationError) ErrOrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(e.Fields[field], " ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError extracts a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// Package domain contains the core business entities for the pantry API.
// These are plain Go structs representing users, their catalog entries
// (tags and ingredients) and their recipes.
package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// MaxNameLength bounds every free-text name column.
const MaxNameLength = 255

var validate = validator.New(validator.WithRequiredStructEnabled())

// User represents a registered user in the system.
// Users own tags, ingredients and recipes, and authenticate with a token.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Email is the unique login identifier, stored with a lowercased domain part.
	Email string `json:"email"`

	// Name is an optional display name.
	Name string `json:"name"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// IsActive indicates whether the user account is active.
	// Inactive users cannot obtain or use tokens.
	IsActive bool `json:"is_active"`

	// IsStaff marks operators allowed into administrative tooling.
	IsStaff bool `json:"is_staff"`

	// IsSuperuser marks users with every permission.
	IsSuperuser bool `json:"is_superuser"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new active User with default values.
func NewUser(email, name, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		Email:        NormalizeEmail(email),
		Name:         name,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CanAuthenticate returns true if the user is allowed to authenticate.
func (u *User) CanAuthenticate() bool {
	return u.IsActive
}

// NormalizeEmail trims surrounding space and lowercases the domain part.
// The local part is kept as given.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// UserInput carries user fields from a request. A nil field was omitted.
type UserInput struct {
	Email    *string
	Password *string
	Name     *string
}

// Validate checks the input for registration (Full) or profile updates.
// minPassword is the shortest acceptable password.
func (in UserInput) Validate(mode UpdateMode, minPassword int) error {
	verr := &ValidationError{}

	switch {
	case in.Email == nil:
		if mode == UpdateFull {
			verr.Add("email", MsgRequired)
		}
	case strings.TrimSpace(*in.Email) == "":
		verr.Add("email", MsgBlank)
	case utf8.RuneCountInString(*in.Email) > MaxNameLength:
		verr.Add("email", fmt.Sprintf(MsgMaxLength, MaxNameLength))
	case validate.Var(strings.TrimSpace(*in.Email), "email") != nil:
		verr.Add("email", MsgInvalidEmail)
	}

	switch {
	case in.Password == nil:
		if mode == UpdateFull {
			verr.Add("password", MsgRequired)
		}
	case *in.Password == "":
		verr.Add("password", MsgBlank)
	case utf8.RuneCountInString(*in.Password) < minPassword:
		verr.Add("password", fmt.Sprintf(MsgMinLength, minPassword))
	}

	if in.Name != nil && utf8.RuneCountInString(strings.TrimSpace(*in.Name)) > MaxNameLength {
		verr.Add("name", fmt.Sprintf(MsgMaxLength, MaxNameLength))
	}

	return verr.ErrOrNil()
}

// Token is an opaque credential issued to a user.
// Key holds the plain value only at issue time; storage keeps a hash.
type Token struct {
	Key       string    `json:"token"`
	UserID    int64     `json:"-"`
	CreatedAt time.Time `json:"-"`
}

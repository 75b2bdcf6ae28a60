// Package repository defines data access interfaces for the pantry API.
// These interfaces abstract database operations, allowing for different implementations
// (PostgreSQL, SQLite, Redis for tokens) while keeping the service layer clean.
package repository

import (
	"context"

	"github.com/prn-tf/pantry/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user.
	// Returns domain.ErrUserAlreadyExists if the email is taken (case-insensitive).
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByEmail retrieves a user by email, ignoring case.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// ExistsByEmail checks if a user with the given email exists, ignoring case.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Update updates email, name, password hash and flags of an existing user.
	Update(ctx context.Context, user *domain.User) error

	// SetActive enables or disables a user.
	SetActive(ctx context.Context, id int64, active bool) error

	// List returns users ordered by ID with pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error)
}

// =============================================================================
// Token Repository
// =============================================================================

// TokenRepository stores the hash of each user's single active token.
type TokenRepository interface {
	// Replace stores tokenHash as the user's token, dropping any previous one.
	Replace(ctx context.Context, userID int64, tokenHash string) error

	// GetUserID resolves a token hash to its owner.
	// Returns domain.ErrTokenNotFound if no user owns it.
	GetUserID(ctx context.Context, tokenHash string) (int64, error)

	// Delete removes the user's token, if any.
	Delete(ctx context.Context, userID int64) error
}

// =============================================================================
// Attribute Repository (tags and ingredients)
// =============================================================================

// AttributeRepository defines data access for one attribute kind.
// Every method is restricted to the rows owned by the scope's user.
type AttributeRepository interface {
	// Kind returns the attribute kind served by this repository.
	Kind() domain.AttributeKind

	// List returns the scope's attributes ordered by name then ID, both descending.
	// With assignedOnly, only attributes linked to at least one of the
	// scope's recipes are returned, each once.
	List(ctx context.Context, scope Scope, assignedOnly bool) ([]*domain.Attribute, error)

	// Create inserts attr for the scope's user and sets its ID.
	Create(ctx context.Context, scope Scope, attr *domain.Attribute) error

	// GetByIDs returns the scope's attributes whose IDs are in ids, ordered by ID.
	// IDs that do not exist or belong to someone else are absent from the result.
	GetByIDs(ctx context.Context, scope Scope, ids []int64) ([]*domain.Attribute, error)
}

// =============================================================================
// Recipe Repository
// =============================================================================

// RecipeRepository defines data access for recipes and their links.
// Every method is restricted to the rows owned by the scope's user.
type RecipeRepository interface {
	// List returns the scope's recipes ordered by ID descending, with tags and
	// ingredients loaded. The filter ORs IDs within a list and ANDs the lists.
	List(ctx context.Context, scope Scope, filter domain.RecipeFilter) ([]*domain.Recipe, error)

	// GetByID retrieves a recipe with tags and ingredients loaded.
	// Returns domain.ErrRecipeNotFound for missing and foreign recipes alike.
	GetByID(ctx context.Context, scope Scope, id int64) (*domain.Recipe, error)

	// Create inserts the recipe and its links in one transaction and sets its ID.
	Create(ctx context.Context, scope Scope, recipe *domain.Recipe) error

	// Update rewrites the scalar fields and both link sets in one transaction.
	Update(ctx context.Context, scope Scope, recipe *domain.Recipe) error

	// SetImage stores a new image key and returns the previous one ("" if none).
	SetImage(ctx context.Context, scope Scope, id int64, key string) (string, error)

	// Delete removes the recipe and its links.
	Delete(ctx context.Context, scope Scope, id int64) error
}

// =============================================================================
// Common Types
// =============================================================================

// Pagination bounds applied by ListOptions.Normalize.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ListOptions contains common options for list operations.
type ListOptions struct {
	// Offset is the number of records to skip.
	Offset int

	// Limit is the maximum number of records to return.
	Limit int
}

// ListResult is a generic paginated list result.
type ListResult[T any] struct {
	// Items is the list of items.
	Items []*T

	// Total is the total number of items (without pagination).
	Total int64

	// Offset is the current offset.
	Offset int

	// Limit is the current limit.
	Limit int
}

// Normalize fills in default pagination values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 || o.Limit > MaxListLimit {
		o.Limit = DefaultListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// DatabaseHealth is implemented by every database handle.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

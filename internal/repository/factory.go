package repository

import (
	"errors"
	"io"

	"github.com/prn-tf/pantry/internal/domain"
)

// Repositories holds every repository the services depend on.
type Repositories struct {
	Users       UserRepository
	Tokens      TokenRepository
	Tags        AttributeRepository
	Ingredients AttributeRepository
	Recipes     RecipeRepository

	// Database is the handle backing the SQL repositories.
	Database DatabaseHealth

	closers []io.Closer
}

// Attributes returns the repository for kind, or nil for an unknown kind.
func (r *Repositories) Attributes(kind domain.AttributeKind) AttributeRepository {
	switch kind {
	case domain.KindTag:
		return r.Tags
	case domain.KindIngredient:
		return r.Ingredients
	}
	return nil
}

// AddCloser registers an extra resource, such as a Redis client, to be
// released by Close.
func (r *Repositories) AddCloser(c io.Closer) {
	r.closers = append(r.closers, c)
}

// Close releases the extra resources in reverse order, then the database.
func (r *Repositories) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.Database != nil {
		if err := r.Database.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

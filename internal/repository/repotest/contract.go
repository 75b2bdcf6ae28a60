// Package repotest holds behaviour checks shared by every repository backend.
package repotest

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/pkg/crypto"
	"github.com/prn-tf/pantry/internal/repository"
)

// Backend is the set of repositories a backend provides.
type Backend struct {
	Users       repository.UserRepository
	Tokens      repository.TokenRepository
	Tags        repository.AttributeRepository
	Ingredients repository.AttributeRepository
	Recipes     repository.RecipeRepository
}

// Run exercises b against a freshly migrated, empty database.
func Run(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	newUser := func(t *testing.T, email string) repository.Scope {
		t.Helper()
		u := domain.NewUser(email, "", "hash")
		require.NoError(t, b.Users.Create(ctx, u))
		return repository.ForUser(u)
	}
	newAttr := func(t *testing.T, repo repository.AttributeRepository, scope repository.Scope, name string) domain.Attribute {
		t.Helper()
		a := &domain.Attribute{Name: name}
		require.NoError(t, repo.Create(ctx, scope, a))
		return *a
	}
	newRecipe := func(t *testing.T, scope repository.Scope, title string, tags, ingredients []domain.Attribute) *domain.Recipe {
		t.Helper()
		r := &domain.Recipe{
			Title:       title,
			TimeMinutes: 5,
			Price:       decimal.RequireFromString("25.50"),
			Tags:        tags,
			Ingredients: ingredients,
		}
		require.NoError(t, b.Recipes.Create(ctx, scope, r))
		return r
	}

	t.Run("users", func(t *testing.T) {
		u := domain.NewUser("contract@example.com", "Contract", "hash")
		require.NoError(t, b.Users.Create(ctx, u))

		err := b.Users.Create(ctx, domain.NewUser("CONTRACT@example.com", "", "hash"))
		assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)

		got, err := b.Users.GetByEmail(ctx, "Contract@Example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "Contract", got.Name)

		_, err = b.Users.GetByID(ctx, u.ID+1000)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("tokens rotate", func(t *testing.T) {
		scope := newUser(t, "tokens@example.com")

		first, second := crypto.HashToken("first"), crypto.HashToken("second")

		require.NoError(t, b.Tokens.Replace(ctx, scope.UserID, first))
		require.NoError(t, b.Tokens.Replace(ctx, scope.UserID, second))

		_, err := b.Tokens.GetUserID(ctx, first)
		assert.ErrorIs(t, err, domain.ErrTokenNotFound)

		uid, err := b.Tokens.GetUserID(ctx, second)
		require.NoError(t, err)
		assert.Equal(t, scope.UserID, uid)

		_, err = b.Tokens.GetUserID(ctx, "not-a-hash")
		assert.ErrorIs(t, err, domain.ErrTokenNotFound)
		assert.ErrorIs(t, b.Tokens.Replace(ctx, scope.UserID, "not-a-hash"), repository.ErrMalformedTokenHash)
	})

	t.Run("owner scoping", func(t *testing.T) {
		u1 := newUser(t, "owner1@example.com")
		u2 := newUser(t, "owner2@example.com")

		vegan := newAttr(t, b.Tags, u1, "Vegan")
		spicy := newAttr(t, b.Tags, u1, "Spicy")
		newAttr(t, b.Tags, u2, "Other")
		salt := newAttr(t, b.Ingredients, u1, "Salt")
		newAttr(t, b.Ingredients, u1, "Unused")

		recipe := newRecipe(t, u1, "Borscht", []domain.Attribute{vegan, spicy}, []domain.Attribute{salt})

		tags, err := b.Tags.List(ctx, u1, false)
		require.NoError(t, err)
		require.Len(t, tags, 2)
		assert.Equal(t, "Vegan", tags[0].Name)

		assigned, err := b.Ingredients.List(ctx, u1, true)
		require.NoError(t, err)
		require.Len(t, assigned, 1)
		assert.Equal(t, "Salt", assigned[0].Name)

		got, err := b.Recipes.GetByID(ctx, u1, recipe.ID)
		require.NoError(t, err)
		assert.Equal(t, "25.50", got.Price.StringFixed(2))
		require.Len(t, got.Tags, 2)
		assert.Equal(t, "Vegan", got.Tags[0].Name)
		assert.Equal(t, "Spicy", got.Tags[1].Name)

		_, err = b.Recipes.GetByID(ctx, u2, recipe.ID)
		assert.ErrorIs(t, err, domain.ErrRecipeNotFound)

		list, err := b.Recipes.List(ctx, u2, domain.RecipeFilter{})
		require.NoError(t, err)
		assert.Empty(t, list)

		list, err = b.Recipes.List(ctx, u1, domain.RecipeFilter{TagIDs: []int64{spicy.ID}, IngredientIDs: []int64{salt.ID}})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, recipe.ID, list[0].ID)

		got.Tags = nil
		got.Title = "Renamed"
		require.NoError(t, b.Recipes.Update(ctx, u1, got))
		got, err = b.Recipes.GetByID(ctx, u1, recipe.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
		assert.Empty(t, got.Tags)
		assert.Len(t, got.Ingredients, 1)

		prev, err := b.Recipes.SetImage(ctx, u1, recipe.ID, "uploads/recipe/one.png")
		require.NoError(t, err)
		assert.Empty(t, prev)
		prev, err = b.Recipes.SetImage(ctx, u1, recipe.ID, "uploads/recipe/two.png")
		require.NoError(t, err)
		assert.Equal(t, "uploads/recipe/one.png", prev)

		assert.ErrorIs(t, b.Recipes.Delete(ctx, u2, recipe.ID), domain.ErrRecipeNotFound)
		require.NoError(t, b.Recipes.Delete(ctx, u1, recipe.ID))
		_, err = b.Recipes.GetByID(ctx, u1, recipe.ID)
		assert.ErrorIs(t, err, domain.ErrRecipeNotFound)
	})

	t.Run("unscoped queries are rejected", func(t *testing.T) {
		_, err := b.Recipes.List(ctx, repository.Scope{}, domain.RecipeFilter{})
		assert.ErrorIs(t, err, repository.ErrUnscoped)
		_, err = b.Ingredients.List(ctx, repository.Scope{}, false)
		assert.ErrorIs(t, err, repository.ErrUnscoped)
	})
}

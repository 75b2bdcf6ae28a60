package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/repository"
)

// recipeRepository implements repository.RecipeRepository for SQLite.
type recipeRepository struct {
	db *DB
}

// NewRecipeRepository creates a new SQLite recipe repository.
func NewRecipeRepository(db *DB) repository.RecipeRepository {
	return &recipeRepository{db: db}
}

// execer is satisfied by *DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// querier is satisfied by *DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const recipeColumns = `r.id, r.user_id, r.title, r.time_minutes, r.price, r.link, r.image, r.created_at, r.updated_at`

func scanRecipe(row rowScanner) (*domain.Recipe, error) {
	recipe := &domain.Recipe{}
	var price, createdAt, updatedAt string

	err := row.Scan(
		&recipe.ID,
		&recipe.UserID,
		&recipe.Title,
		&recipe.TimeMinutes,
		&price,
		&recipe.Link,
		&recipe.Image,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	recipe.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
	}
	recipe.CreatedAt = parseTime(createdAt)
	recipe.UpdatedAt = parseTime(updatedAt)
	recipe.Tags = []domain.Attribute{}
	recipe.Ingredients = []domain.Attribute{}

	return recipe, nil
}

// List returns the scope's recipes, newest first.
func (r *recipeRepository) List(ctx context.Context, scope repository.Scope, filter domain.RecipeFilter) ([]*domain.Recipe, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT ` + recipeColumns + ` FROM recipes r WHERE ` + scope.SQL("r", "?")
	args := []any{scope.UserID}

	for _, f := range []struct {
		kind domain.AttributeKind
		ids  []int64
	}{
		{domain.KindTag, filter.TagIDs},
		{domain.KindIngredient, filter.IngredientIDs},
	} {
		if len(f.ids) == 0 {
			continue
		}
		t := repository.MustTablesFor(f.kind)
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM %s l WHERE l.recipe_id = r.id AND l.%s IN (%s))`,
			t.LinkTable, t.LinkColumn, placeholders(len(f.ids)))
		args = append(args, int64Args(f.ids)...)
	}
	query += ` ORDER BY r.id DESC`

	recipes, err := r.queryRecipes(ctx, r.db, query, args...)
	if err != nil {
		return nil, err
	}
	if err := loadRelations(ctx, r.db, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// GetByID retrieves one of the scope's recipes.
func (r *recipeRepository) GetByID(ctx context.Context, scope repository.Scope, id int64) (*domain.Recipe, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT ` + recipeColumns + ` FROM recipes r WHERE r.id = ? AND ` + scope.SQL("r", "?")
	recipe, err := scanRecipe(r.db.QueryRowContext(ctx, query, id, scope.UserID))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	if err := loadRelations(ctx, r.db, []*domain.Recipe{recipe}); err != nil {
		return nil, err
	}
	return recipe, nil
}

// Create inserts the recipe and its links in one transaction.
func (r *recipeRepository) Create(ctx context.Context, scope repository.Scope, recipe *domain.Recipe) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO recipes (user_id, title, time_minutes, price, link, image, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			scope.UserID,
			recipe.Title,
			recipe.TimeMinutes,
			recipe.Price.StringFixed(domain.PriceDecimalPlaces),
			recipe.Link,
			recipe.Image,
			formatTime(now),
			formatTime(now),
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrUserNotFound
			}
			return fmt.Errorf("failed to create recipe: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert ID: %w", err)
		}

		if err := writeLinks(ctx, tx, scope, id, recipe); err != nil {
			return err
		}

		recipe.ID = id
		recipe.UserID = scope.UserID
		recipe.CreatedAt = now
		recipe.UpdatedAt = now
		return nil
	})
}

// Update rewrites the recipe's scalar fields and link sets.
func (r *recipeRepository) Update(ctx context.Context, scope repository.Scope, recipe *domain.Recipe) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE recipes
			SET title = ?, time_minutes = ?, price = ?, link = ?, updated_at = ?
			WHERE id = ? AND `+scope.SQL("", "?"),
			recipe.Title,
			recipe.TimeMinutes,
			recipe.Price.StringFixed(domain.PriceDecimalPlaces),
			recipe.Link,
			formatTime(now),
			recipe.ID,
			scope.UserID,
		)
		if err != nil {
			return fmt.Errorf("failed to update recipe: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return domain.ErrRecipeNotFound
		}

		for _, kind := range []domain.AttributeKind{domain.KindTag, domain.KindIngredient} {
			t := repository.MustTablesFor(kind)
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE recipe_id = ?`, t.LinkTable), recipe.ID); err != nil {
				return fmt.Errorf("failed to clear %s: %w", t.LinkTable, err)
			}
		}

		if err := writeLinks(ctx, tx, scope, recipe.ID, recipe); err != nil {
			return err
		}

		recipe.UpdatedAt = now
		return nil
	})
}

// SetImage stores a new image key and returns the previous one.
func (r *recipeRepository) SetImage(ctx context.Context, scope repository.Scope, id int64, key string) (string, error) {
	if err := scope.Validate(); err != nil {
		return "", err
	}

	var previous string
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT image FROM recipes WHERE id = ? AND `+scope.SQL("", "?"), id, scope.UserID,
		).Scan(&previous)
		if err != nil {
			if isNoRows(err) {
				return domain.ErrRecipeNotFound
			}
			return fmt.Errorf("failed to read recipe image: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE recipes SET image = ?, updated_at = ? WHERE id = ? AND `+scope.SQL("", "?"),
			key, formatTime(time.Now()), id, scope.UserID,
		)
		if err != nil {
			return fmt.Errorf("failed to update recipe image: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return previous, nil
}

// Delete removes the recipe; links go with it through ON DELETE CASCADE.
func (r *recipeRepository) Delete(ctx context.Context, scope repository.Scope, id int64) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM recipes WHERE id = ? AND `+scope.SQL("", "?"), id, scope.UserID)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrRecipeNotFound
	}
	return nil
}

func (r *recipeRepository) queryRecipes(ctx context.Context, q querier, query string, args ...any) ([]*domain.Recipe, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	recipes := []*domain.Recipe{}
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		recipes = append(recipes, recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipes: %w", err)
	}
	return recipes, nil
}

// writeLinks inserts the recipe's tag and ingredient links. Attributes not
// owned by the scope are skipped by the INSERT ... SELECT.
func writeLinks(ctx context.Context, tx execer, scope repository.Scope, recipeID int64, recipe *domain.Recipe) error {
	for _, set := range []struct {
		kind  domain.AttributeKind
		attrs []domain.Attribute
	}{
		{domain.KindTag, recipe.Tags},
		{domain.KindIngredient, recipe.Ingredients},
	} {
		t := repository.MustTablesFor(set.kind)
		query := fmt.Sprintf(`
			INSERT OR IGNORE INTO %s (recipe_id, %s)
			SELECT ?, a.id FROM %s a WHERE a.id = ? AND %s`,
			t.LinkTable, t.LinkColumn, t.Table, scope.SQL("a", "?"))

		for _, attr := range set.attrs {
			if _, err := tx.ExecContext(ctx, query, recipeID, attr.ID, scope.UserID); err != nil {
				return fmt.Errorf("failed to link %s %d: %w", set.kind, attr.ID, err)
			}
		}
	}
	return nil
}

// loadRelations fills Tags and Ingredients of recipes, ordered by attribute ID.
func loadRelations(ctx context.Context, q querier, recipes []*domain.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}

	byID := make(map[int64]*domain.Recipe, len(recipes))
	ids := make([]int64, 0, len(recipes))
	for _, recipe := range recipes {
		byID[recipe.ID] = recipe
		ids = append(ids, recipe.ID)
	}

	for _, kind := range []domain.AttributeKind{domain.KindTag, domain.KindIngredient} {
		t := repository.MustTablesFor(kind)
		query := fmt.Sprintf(`
			SELECT l.recipe_id, a.id, a.user_id, a.name
			FROM %s l
			JOIN %s a ON a.id = l.%s
			WHERE l.recipe_id IN (%s)
			ORDER BY a.id`,
			t.LinkTable, t.Table, t.LinkColumn, placeholders(len(ids)))

		if err := scanRelations(ctx, q, kind, query, int64Args(ids), byID); err != nil {
			return err
		}
	}
	return nil
}

func scanRelations(ctx context.Context, q querier, kind domain.AttributeKind, query string, args []any, byID map[int64]*domain.Recipe) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load recipe %s: %w", kind.Plural(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var recipeID int64
		attr := domain.Attribute{Kind: kind}
		if err := rows.Scan(&recipeID, &attr.ID, &attr.UserID, &attr.Name); err != nil {
			return fmt.Errorf("failed to scan recipe %s: %w", kind, err)
		}

		recipe := byID[recipeID]
		if kind == domain.KindTag {
			recipe.Tags = append(recipe.Tags, attr)
		} else {
			recipe.Ingredients = append(recipe.Ingredients, attr)
		}
	}
	return rows.Err()
}

var _ repository.RecipeRepository = (*recipeRepository)(nil)

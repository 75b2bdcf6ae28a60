package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/repository"
)

// recipeRepository implements repository.RecipeRepository for PostgreSQL.
type recipeRepository struct {
	db *DB
}

// NewRecipeRepository creates a new PostgreSQL recipe repository.
func NewRecipeRepository(db *DB) repository.RecipeRepository {
	return &recipeRepository{db: db}
}

const recipeColumns = `r.id, r.user_id, r.title, r.time_minutes, r.price::text, r.link, r.image, r.created_at, r.updated_at`

func scanRecipe(row pgx.Row) (*domain.Recipe, error) {
	recipe := &domain.Recipe{}
	var price string

	err := row.Scan(
		&recipe.ID,
		&recipe.UserID,
		&recipe.Title,
		&recipe.TimeMinutes,
		&price,
		&recipe.Link,
		&recipe.Image,
		&recipe.CreatedAt,
		&recipe.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	recipe.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
	}
	recipe.Tags = []domain.Attribute{}
	recipe.Ingredients = []domain.Attribute{}

	return recipe, nil
}

// List returns the scope's recipes, newest first.
func (r *recipeRepository) List(ctx context.Context, scope repository.Scope, filter domain.RecipeFilter) ([]*domain.Recipe, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT ` + recipeColumns + ` FROM recipes r WHERE ` + scope.SQL("r", "$1")
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
		args = append(args, f.ids)
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM %s l WHERE l.recipe_id = r.id AND l.%s = ANY($%d))`,
			t.LinkTable, t.LinkColumn, len(args))
	}
	query += ` ORDER BY r.id DESC`

	rows, err := r.db.Pool.Query(ctx, query, args...)
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

	if err := loadRelations(ctx, r.db.Pool, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// GetByID retrieves one of the scope's recipes.
func (r *recipeRepository) GetByID(ctx context.Context, scope repository.Scope, id int64) (*domain.Recipe, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT ` + recipeColumns + ` FROM recipes r WHERE r.id = $1 AND ` + scope.SQL("r", "$2")
	recipe, err := scanRecipe(r.db.Pool.QueryRow(ctx, query, id, scope.UserID))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	if err := loadRelations(ctx, r.db.Pool, []*domain.Recipe{recipe}); err != nil {
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
	return r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO recipes (user_id, title, time_minutes, price, link, image, created_at, updated_at)
			VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $7)
			RETURNING id`,
			scope.UserID,
			recipe.Title,
			recipe.TimeMinutes,
			recipe.Price.StringFixed(domain.PriceDecimalPlaces),
			recipe.Link,
			recipe.Image,
			now,
		).Scan(&recipe.ID)
		if err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrUserNotFound
			}
			return fmt.Errorf("failed to create recipe: %w", err)
		}

		if err := writeLinks(ctx, tx, scope, recipe); err != nil {
			return err
		}

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
	return r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE recipes
			SET title = $1, time_minutes = $2, price = $3::text::numeric, link = $4, updated_at = $5
			WHERE id = $6 AND `+scope.SQL("", "$7"),
			recipe.Title,
			recipe.TimeMinutes,
			recipe.Price.StringFixed(domain.PriceDecimalPlaces),
			recipe.Link,
			now,
			recipe.ID,
			scope.UserID,
		)
		if err != nil {
			return fmt.Errorf("failed to update recipe: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrRecipeNotFound
		}

		for _, kind := range []domain.AttributeKind{domain.KindTag, domain.KindIngredient} {
			t := repository.MustTablesFor(kind)
			if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE recipe_id = $1`, t.LinkTable), recipe.ID); err != nil {
				return fmt.Errorf("failed to clear %s: %w", t.LinkTable, err)
			}
		}

		if err := writeLinks(ctx, tx, scope, recipe); err != nil {
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
	err := r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT image FROM recipes WHERE id = $1 AND `+scope.SQL("", "$2")+` FOR UPDATE`,
			id, scope.UserID,
		).Scan(&previous)
		if err != nil {
			if isNoRows(err) {
				return domain.ErrRecipeNotFound
			}
			return fmt.Errorf("failed to read recipe image: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE recipes SET image = $1, updated_at = NOW() WHERE id = $2 AND `+scope.SQL("", "$3"),
			key, id, scope.UserID,
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

	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM recipes WHERE id = $1 AND `+scope.SQL("", "$2"), id, scope.UserID)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecipeNotFound
	}
	return nil
}

// writeLinks inserts the recipe's tag and ingredient links. Attributes not
// owned by the scope are skipped by the INSERT ... SELECT.
func writeLinks(ctx context.Context, q Querier, scope repository.Scope, recipe *domain.Recipe) error {
	for _, set := range []struct {
		kind domain.AttributeKind
		ids  []int64
	}{
		{domain.KindTag, recipe.TagIDs()},
		{domain.KindIngredient, recipe.IngredientIDs()},
	} {
		if len(set.ids) == 0 {
			continue
		}
		t := repository.MustTablesFor(set.kind)
		query := fmt.Sprintf(`
			INSERT INTO %s (recipe_id, %s)
			SELECT $1::bigint, a.id FROM %s a WHERE a.id = ANY($2) AND %s
			ON CONFLICT DO NOTHING`,
			t.LinkTable, t.LinkColumn, t.Table, scope.SQL("a", "$3"))

		if _, err := q.Exec(ctx, query, recipe.ID, set.ids, scope.UserID); err != nil {
			return fmt.Errorf("failed to link %s: %w", set.kind.Plural(), err)
		}
	}
	return nil
}

// loadRelations fills Tags and Ingredients of recipes, ordered by attribute ID.
func loadRelations(ctx context.Context, q Querier, recipes []*domain.Recipe) error {
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
			WHERE l.recipe_id = ANY($1)
			ORDER BY a.id`,
			t.LinkTable, t.Table, t.LinkColumn)

		rows, err := q.Query(ctx, query, ids)
		if err != nil {
			return fmt.Errorf("failed to load recipe %s: %w", kind.Plural(), err)
		}

		for rows.Next() {
			var recipeID int64
			attr := domain.Attribute{Kind: kind}
			if err := rows.Scan(&recipeID, &attr.ID, &attr.UserID, &attr.Name); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan recipe %s: %w", kind, err)
			}

			recipe := byID[recipeID]
			if kind == domain.KindTag {
				recipe.Tags = append(recipe.Tags, attr)
			} else {
				recipe.Ingredients = append(recipe.Ingredients, attr)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating recipe %s: %w", kind.Plural(), err)
		}
	}
	return nil
}

var _ repository.RecipeRepository = (*recipeRepository)(nil)

package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/repository"
)

// attributeRepository implements repository.AttributeRepository for SQLite.
// One instance serves one kind (tags or ingredients).
type attributeRepository struct {
	db     *DB
	kind   domain.AttributeKind
	tables repository.AttributeTables
}

// NewTagRepository creates a new SQLite tag repository.
func NewTagRepository(db *DB) repository.AttributeRepository {
	return newAttributeRepository(db, domain.KindTag)
}

// NewIngredientRepository creates a new SQLite ingredient repository.
func NewIngredientRepository(db *DB) repository.AttributeRepository {
	return newAttributeRepository(db, domain.KindIngredient)
}

func newAttributeRepository(db *DB, kind domain.AttributeKind) *attributeRepository {
	return &attributeRepository{
		db:     db,
		kind:   kind,
		tables: repository.MustTablesFor(kind),
	}
}

// Kind returns the attribute kind served by this repository.
func (r *attributeRepository) Kind() domain.AttributeKind {
	return r.kind
}

// List returns the scope's attributes, newest name first.
func (r *attributeRepository) List(ctx context.Context, scope repository.Scope, assignedOnly bool) ([]*domain.Attribute, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT a.id, a.user_id, a.name FROM %s a WHERE %s`,
		r.tables.Table, scope.SQL("a", "?"))
	args := []any{scope.UserID}

	if assignedOnly {
		query += fmt.Sprintf(`
			AND EXISTS (
				SELECT 1 FROM %s l
				JOIN recipes r ON r.id = l.recipe_id
				WHERE l.%s = a.id AND %s
			)`, r.tables.LinkTable, r.tables.LinkColumn, scope.SQL("r", "?"))
		args = append(args, scope.UserID)
	}
	query += ` ORDER BY a.name DESC, a.id DESC`

	return r.query(ctx, query, args...)
}

// Create inserts attr for the scope's user.
func (r *attributeRepository) Create(ctx context.Context, scope repository.Scope, attr *domain.Attribute) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (user_id, name, created_at) VALUES (?, ?, ?)`, r.tables.Table)
	result, err := r.db.ExecContext(ctx, query, scope.UserID, attr.Name, formatTime(time.Now()))
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("failed to create %s: %w", r.kind, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	attr.ID = id
	attr.UserID = scope.UserID
	attr.Kind = r.kind

	return nil
}

// GetByIDs returns the scope's attributes with the given IDs.
func (r *attributeRepository) GetByIDs(ctx context.Context, scope repository.Scope, ids []int64) ([]*domain.Attribute, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*domain.Attribute{}, nil
	}

	query := fmt.Sprintf(`SELECT a.id, a.user_id, a.name FROM %s a WHERE %s AND a.id IN (%s) ORDER BY a.id`,
		r.tables.Table, scope.SQL("a", "?"), placeholders(len(ids)))
	args := append([]any{scope.UserID}, int64Args(ids)...)

	return r.query(ctx, query, args...)
}

func (r *attributeRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Attribute, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.tables.Table, err)
	}
	defer rows.Close()

	attrs := []*domain.Attribute{}
	for rows.Next() {
		attr := &domain.Attribute{Kind: r.kind}
		if err := rows.Scan(&attr.ID, &attr.UserID, &attr.Name); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", r.kind, err)
		}
		attrs = append(attrs, attr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", r.tables.Table, err)
	}

	return attrs, nil
}

var _ repository.AttributeRepository = (*attributeRepository)(nil)
